package plugin

import "sort"

// CheckConflicts runs the cross-plugin uniqueness checks in order (plugin
// names, column names, view keybindings) and returns the first that fails.
func CheckConflicts(manifests []*Manifest) error {
	for _, check := range []func([]*Manifest) error{
		CheckNameConflicts,
		CheckColumnConflicts,
		CheckKeybindingConflicts,
	} {
		if err := check(manifests); err != nil {
			return err
		}
	}
	return nil
}

// CheckNameConflicts fails if two manifests share a name.
func CheckNameConflicts(manifests []*Manifest) error {
	return collectConflicts(ConflictName, manifests, func(m *Manifest) []string {
		return []string{m.Name}
	})
}

// CheckColumnConflicts fails if a column name appears in the columns of more
// than one plugin. Per-view columns are scoped to their view and not checked.
func CheckColumnConflicts(manifests []*Manifest) error {
	return collectConflicts(ConflictColumn, manifests, func(m *Manifest) []string {
		names := make([]string, len(m.Columns))
		for i, c := range m.Columns {
			names[i] = c.Name
		}
		return names
	})
}

// CheckKeybindingConflicts fails if a view keybinding is claimed by more
// than one plugin.
func CheckKeybindingConflicts(manifests []*Manifest) error {
	return collectConflicts(ConflictKeybinding, manifests, func(m *Manifest) []string {
		keys := make([]string, len(m.Views))
		for i, v := range m.Views {
			keys[i] = v.Keybinding
		}
		return keys
	})
}

// collectConflicts maps every key to the plugins defining it and reports
// the keys owned by more than one, each with its plugins sorted by name. A plugin listing a key twice counts once;
// duplicates within a plugin are the validator's concern.
func collectConflicts(kind ConflictKind, manifests []*Manifest, keys func(*Manifest) []string) error {
	owners := make(map[string][]string)
	for _, m := range manifests {
		seen := make(map[string]bool)
		for _, k := range keys(m) {
			if seen[k] {
				continue
			}
			seen[k] = true
			owners[k] = append(owners[k], m.Name)
		}
	}

	conflicts := make(map[string][]string)
	for k, plugins := range owners {
		if len(plugins) > 1 {
			sort.Strings(plugins)
			conflicts[k] = plugins
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	return &ConflictError{Kind: kind, Plugins: conflicts}
}
