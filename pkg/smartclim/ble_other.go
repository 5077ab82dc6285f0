//go:build !linux

package smartclim

import "context"

func dialBLE(context.Context, string, *clientConfig) (peripheral, error) {
	return nil, ErrUnsupportedPlatform
}

func scanBLE(context.Context, *clientConfig, func(DiscoveryResult)) error {
	return ErrUnsupportedPlatform
}
