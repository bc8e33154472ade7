//go:build !linux

package sandbox

func newNamespaceProvider(bool) Provider {
	return UnavailableProvider{Reason: "mount namespaces are only supported on linux"}
}
