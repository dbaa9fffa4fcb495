package translation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const DefaultAmazonRegion = "us-east-1"

// AmazonProvider reports availability from its AWS credentials but does not
// call the service yet. It is not part of the fallback chain.
type AmazonProvider struct {
	baseProvider
}

func NewAmazonProvider(client *http.Client, cfg ProviderConfig) *AmazonProvider {
	return &AmazonProvider{baseProvider: newBaseProvider(ProviderAmazon, client, cfg)}
}

func (p *AmazonProvider) Available() bool {
	cfg := p.config()
	return strings.TrimSpace(cfg.AccessKeyID) != "" && strings.TrimSpace(cfg.SecretAccessKey) != ""
}

// Region returns the configured AWS region.
func (p *AmazonProvider) Region() string {
	return firstNonEmpty(p.config().Region, DefaultAmazonRegion)
}

// TODO: sign requests with SigV4 and call TranslateText.
func (p *AmazonProvider) Translate(context.Context, Request) (*Result, error) {
	return nil, fmt.Errorf("%s (%s): %w", DisplayName(p.Name()), p.Region(), ErrNotImplemented)
}
