// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"lifelink-workers/internal/common/config"
)

// ElasticsearchClient wraps the client behind the donor search index.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

// NewElasticsearch builds a client from config. transport is optional and
// only set by tests.
func NewElasticsearch(cfg config.ElasticsearchConfig, transport ...http.RoundTripper) (*ElasticsearchClient, error) {
	addresses := cfg.GetAddresses()
	if len(addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch addresses are empty")
	}

	esCfg := elasticsearch.Config{
		Addresses: addresses,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if len(transport) > 0 && transport[0] != nil {
		esCfg.Transport = transport[0]
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}
