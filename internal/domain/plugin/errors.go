package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for programmatic error handling.
var (
	// ErrEmptyPluginName indicates a plugin name was empty.
	ErrEmptyPluginName = errors.New("plugin name cannot be empty")
	// ErrInvalidDuration indicates a duration string outside the N(ms|s|m|h) grammar.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrManifestTooLarge indicates a manifest file exceeds maxManifestSize.
	ErrManifestTooLarge = errors.New("manifest exceeds size limit")
)

// InvalidManifestError indicates a manifest file is not well-formed YAML
// or does not decode into the manifest schema.
type InvalidManifestError struct {
	Path string
	Err  error
}

func (e *InvalidManifestError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid manifest: %v", e.Err)
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Path, e.Err)
}

func (e *InvalidManifestError) Unwrap() error {
	return e.Err
}

// ValidationError reports the first manifest field that violates the schema.
// Field is a dotted path such as "source.endpoint" or "columns[1].width".
type ValidationError struct {
	Field    string
	Message  string
	Expected string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Field, e.Message)
	if e.Expected != "" {
		msg += fmt.Sprintf(" (expected %s)", e.Expected)
	}
	return msg
}

// ConflictKind names the uniqueness rule a ConflictError violates.
type ConflictKind string

// Conflict kinds, checked in this order.
const (
	ConflictName       ConflictKind = "name"
	ConflictColumn     ConflictKind = "column"
	ConflictKeybinding ConflictKind = "keybinding"
)

// ConflictError reports every key that more than one plugin defines.
// Plugins maps the conflicting key (plugin name, column name or keybinding)
// to the names of all plugins that define it.
type ConflictError struct {
	Kind    ConflictKind
	Plugins map[string][]string
}

func (e *ConflictError) Error() string {
	keys := make([]string, 0, len(e.Plugins))
	for k := range e.Plugins {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch e.Kind {
		case ConflictName:
			parts = append(parts, fmt.Sprintf("plugin name %q is used %d times", k, len(e.Plugins[k])))
		default:
			parts = append(parts, fmt.Sprintf("%s %q is defined by plugins %s",
				e.Kind, k, strings.Join(e.Plugins[k], ", ")))
		}
	}
	return fmt.Sprintf("%s conflicts: %s", e.Kind, strings.Join(parts, "; "))
}

// NotFoundError indicates a referenced plugin or connector does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// LoadError indicates an I/O failure reading a manifest file or the plugins directory.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PluginExistsError indicates an install target already exists.
//
//nolint:revive // Name mirrors the other plugin error types
type PluginExistsError struct {
	Name string
	Path string
}

func (e *PluginExistsError) Error() string {
	return fmt.Sprintf("plugin %q already installed at %s", e.Name, e.Path)
}

// IsInvalidManifest returns true if the error is a manifest decode failure.
func IsInvalidManifest(err error) bool {
	var target *InvalidManifestError
	return errors.As(err, &target)
}

// IsValidationError returns true if the error is a validation error.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict returns true if the error is a cross-plugin conflict.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound returns true if the error indicates a missing plugin or connector.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsPluginExists returns true if the error indicates the plugin is already installed.
func IsPluginExists(err error) bool {
	var target *PluginExistsError
	return errors.As(err, &target)
}
