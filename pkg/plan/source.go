package plan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Definition is the raw material a Catalog is built from.
type Definition struct {
	Plans     []Plan
	Baselines Baselines
}

// Source loads a catalog definition.
type Source interface {
	Load(ctx context.Context) (Definition, error)
}

type memorySource struct {
	def Definition
}

// NewMemorySource returns a Source that serves a copy of the given plans
// together with DefaultBaselines.
func NewMemorySource(plans ...Plan) Source {
	return &memorySource{def: Definition{
		Plans:     slices.Clone(plans),
		Baselines: DefaultBaselines(),
	}}
}

func (s *memorySource) Load(context.Context) (Definition, error) {
	return Definition{
		Plans:     slices.Clone(s.def.Plans),
		Baselines: s.def.Baselines,
	}, nil
}

// yamlDocument is the on-disk catalog format:
//
//	plans:
//	  - tier: starter
//	    name: Starter
//	    storage_quota_gb: 10
//	    gallery_limit: 10
//	    price_id: pri_starter_monthly
//	baselines:
//	  starter: {storage_gb: 5, resources: 5}
//	  plus: {storage_gb: 50}
type yamlDocument struct {
	Plans []struct {
		Tier           string  `yaml:"tier"`
		Name           string  `yaml:"name"`
		StorageQuotaGB float64 `yaml:"storage_quota_gb"`
		GalleryLimit   int64   `yaml:"gallery_limit"`
		PriceID        string  `yaml:"price_id"`
	} `yaml:"plans"`
	Baselines *struct {
		Starter *yamlBaseline `yaml:"starter"`
		Plus    *yamlBaseline `yaml:"plus"`
	} `yaml:"baselines"`
}

type yamlBaseline struct {
	StorageGB float64 `yaml:"storage_gb"`
	Resources *int64  `yaml:"resources"`
}

type yamlSource struct {
	read func() (io.ReadCloser, error)
}

// NewYAMLSource reads the catalog from r on every Load.
func NewYAMLSource(r io.Reader) Source {
	data, err := io.ReadAll(r)
	return &yamlSource{read: func() (io.ReadCloser, error) {
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

// NewYAMLFileSource reads the catalog from a file path on every Load.
func NewYAMLFileSource(path string) Source {
	return &yamlSource{read: func() (io.ReadCloser, error) {
		return os.Open(path)
	}}
}

func (s *yamlSource) Load(context.Context) (Definition, error) {
	rc, err := s.read()
	if err != nil {
		return Definition{}, err
	}
	defer rc.Close()

	var doc yamlDocument
	if err := yaml.NewDecoder(rc).Decode(&doc); err != nil {
		return Definition{}, fmt.Errorf("decode plan catalog: %w", err)
	}

	def := Definition{Baselines: DefaultBaselines()}
	for _, p := range doc.Plans {
		tier, ok := ParseTier(p.Tier)
		if !ok {
			return Definition{}, fmt.Errorf("%w: %q", ErrUnknownTier, p.Tier)
		}
		def.Plans = append(def.Plans, Plan{
			Tier:           tier,
			Name:           p.Name,
			StorageQuotaGB: decimal.NewFromFloat(p.StorageQuotaGB),
			GalleryLimit:   p.GalleryLimit,
			GatewayPriceID: p.PriceID,
		})
	}

	if doc.Baselines != nil {
		if b := doc.Baselines.Starter; b != nil {
			def.Baselines.Starter.StorageGB = decimal.NewFromFloat(b.StorageGB)
			if b.Resources != nil {
				def.Baselines.Starter.Resources = *b.Resources
			}
		}
		if b := doc.Baselines.Plus; b != nil {
			def.Baselines.Plus.StorageGB = decimal.NewFromFloat(b.StorageGB)
		}
	}

	return def, nil
}
