package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"gwi.com/chat-sync/internal/models"
)

type modelsFile struct {
	Default string           `toml:"default"`
	Models  []models.AiModel `toml:"models"`
}

// LoadModelCatalog reads the model catalog from a TOML file. An empty path
// yields the built-in catalog. defaultModel, when set, overrides the
// default flagged in the file.
func LoadModelCatalog(path, defaultModel string) (*models.Catalog, error) {
	catalog := models.DefaultCatalog()
	if path != "" {
		var f modelsFile
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, errors.Wrapf(err, "decoding models file %s", path)
		}
		if len(f.Models) == 0 {
			return nil, errors.Errorf("models file %s lists no models", path)
		}
		catalog = models.NewCatalog(f.Models)
		if f.Default != "" {
			catalog.SetDefault(f.Default)
		}
	}
	if defaultModel != "" {
		catalog.SetDefault(defaultModel)
	}
	return catalog, nil
}
