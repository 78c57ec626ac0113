package models

// Catalog is the set of models a client may select from.
type Catalog struct {
	Models []AiModel
}

// DefaultCatalog is used when no models file is configured.
func DefaultCatalog() *Catalog {
	return NewCatalog([]AiModel{
		{
			ID:          "gpt-3.5-turbo",
			Name:        "GPT-3.5 Turbo",
			Description: "Fast general purpose chat model",
			IsDefault:   true,
		},
		{
			ID:          "gpt-4o-mini",
			Name:        "GPT-4o mini",
			Description: "Small multimodal model",
		},
		{
			ID:          "gemini-1.5-flash-latest",
			Name:        "Gemini 1.5 Flash",
			Description: "Low latency Gemini model",
		},
	})
}

// NewCatalog applies defaults and drops entries without an id or with a
// duplicate id.
func NewCatalog(list []AiModel) *Catalog {
	seen := make(map[string]bool, len(list))
	c := &Catalog{}
	for _, m := range list {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		c.Models = append(c.Models, m.WithDefaults())
	}
	return c
}

func (c *Catalog) Find(id string) (AiModel, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return AiModel{}, false
}

// Default returns the model flagged as default, else the first one.
func (c *Catalog) Default() AiModel {
	for _, m := range c.Models {
		if m.IsDefault {
			return m
		}
	}
	if len(c.Models) > 0 {
		return c.Models[0]
	}
	return AiModel{ID: "gpt-3.5-turbo"}.WithDefaults()
}

// SetDefault moves the default flag to id. Unknown ids are ignored.
func (c *Catalog) SetDefault(id string) {
	if _, ok := c.Find(id); !ok {
		return
	}
	for i := range c.Models {
		c.Models[i].IsDefault = c.Models[i].ID == id
	}
}

// Merge returns the configured models followed by any remote ids the
// catalog does not know about.
func (c *Catalog) Merge(remote []string) []AiModel {
	out := make([]AiModel, 0, len(c.Models)+len(remote))
	out = append(out, c.Models...)
	for _, id := range remote {
		if _, ok := c.Find(id); ok || id == "" {
			continue
		}
		out = append(out, AiModel{ID: id}.WithDefaults())
	}
	return out
}
