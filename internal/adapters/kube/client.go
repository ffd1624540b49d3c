// Package kube builds Kubernetes clients from kubeconfig files.
package kube

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client is a typed clientset bound to one kubeconfig context.
type Client struct {
	Clientset  kubernetes.Interface
	RestConfig *rest.Config
	// Context is the kubeconfig context the client was built for.
	Context string
}

// Load builds a client using the standard kubeconfig loading rules.
// An empty kubeconfig path uses $KUBECONFIG or ~/.kube/config; an empty
// context uses the kubeconfig's current context.
func Load(kubeconfig, kubeContext string) (*Client, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	raw, err := clientConfig.RawConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	name := kubeContext
	if name == "" {
		name = raw.CurrentContext
	}
	if _, ok := raw.Contexts[name]; !ok {
		return nil, fmt.Errorf("kubeconfig context %q not found", name)
	}

	config, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build rest config: %w", err)
	}
	config.UserAgent = "flux9s"

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return &Client{Clientset: clientset, RestConfig: config, Context: name}, nil
}
