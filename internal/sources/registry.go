package sources

import (
	"fmt"

	"shopvision/internal/config"
	"shopvision/internal/logger"
)

// New builds the adapter for one configured source.
func New(src config.SourceConfig, httpCfg config.HTTPConfig, log *logger.Logger) (Adapter, error) {
	if log == nil {
		log = logger.Discard()
	}

	switch src.Name {
	case config.SourceAmazon:
		return NewAmazon(src, httpCfg, log), nil
	case config.SourceFlipkart:
		return NewFlipkart(src, httpCfg, log), nil
	case config.SourceGoogleShopping:
		return NewGoogleShopping(src, httpCfg, log), nil
	}

	return nil, fmt.Errorf("%w: %q", config.ErrUnknownSource, src.Name)
}

// NewEnabled builds adapters for every enabled source, in configured order.
func NewEnabled(cfg *config.Config, log *logger.Logger) ([]Adapter, error) {
	enabled := cfg.GetEnabledSources()
	adapters := make([]Adapter, 0, len(enabled))

	for _, src := range enabled {
		adapter, err := New(src, cfg.HTTP, log)
		if err != nil {
			return nil, err
		}

		adapters = append(adapters, adapter)
	}

	return adapters, nil
}
