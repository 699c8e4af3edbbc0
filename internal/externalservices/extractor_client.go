package externalservices

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/shelfmark/productpipeline/internal/logging"
)

// extractAPIResponse is the AI extraction service's wire shape: it tags its
// own response with is_multi_product / success rather than an explicit
// discriminator, so this client is responsible for translating that into
// the closed ExtractionKind set.
type extractAPIResponse struct {
	Success          bool                   `json:"success"`
	IsMultiProduct   bool                   `json:"is_multi_product"`
	Data             map[string]interface{} `json:"data"`
	Products         []extractAPIListEntry  `json:"products"`
	Error            string                 `json:"error"`
	ScrapingBeeCalls int                    `json:"scrapingbee_calls"`
	AICalls          int                    `json:"ai_calls"`
}

type extractAPIListEntry struct {
	Link   string                 `json:"link"`
	Fields map[string]interface{} `json:"fields"`
}

// ExtractorClient is a resty-based Extractor for the external AI extraction
// service (§6).
type ExtractorClient struct {
	client *resty.Client
	token  string
	log    *logging.Logger
}

// NewExtractorClient builds an ExtractorClient against baseURL.
func NewExtractorClient(baseURL, token string, log *logging.Logger) *ExtractorClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(1).
		SetHeader("Authorization", "Bearer "+token)
	return &ExtractorClient{client: client, token: token, log: log}
}

// Extract implements Extractor (§6). It translates the wire response into
// the ExtractionResponse tagged union (§9 "Dynamic typing -> sum types").
func (e *ExtractorClient) Extract(ctx context.Context, content, sourceURL string, productTypeHint *string) (ExtractionResponse, error) {
	var body extractAPIResponse
	req := e.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"content":           content,
			"source_url":        sourceURL,
			"product_type_hint": productTypeHint,
		}).
		SetResult(&body)

	resp, err := req.Post("/extract")
	if err != nil {
		return ExtractionResponse{}, fmt.Errorf("extraction request for %s: %w", sourceURL, err)
	}
	if resp.IsError() {
		return ExtractionResponse{Kind: ExtractionKindFailure, Err: resp.Status()}, nil
	}
	if !body.Success {
		return ExtractionResponse{
			Kind:             ExtractionKindFailure,
			Err:              body.Error,
			ScrapingBeeCalls: body.ScrapingBeeCalls,
			AICalls:          body.AICalls,
		}, nil
	}
	if body.IsMultiProduct {
		products := make([]ExtractedListEntry, 0, len(body.Products))
		for _, p := range body.Products {
			products = append(products, ExtractedListEntry{Link: p.Link, Fields: p.Fields})
		}
		return ExtractionResponse{
			Kind:             ExtractionKindMultiProduct,
			Products:         products,
			ScrapingBeeCalls: body.ScrapingBeeCalls,
			AICalls:          body.AICalls,
		}, nil
	}
	return ExtractionResponse{
		Kind:             ExtractionKindSingle,
		Single:           body.Data,
		ScrapingBeeCalls: body.ScrapingBeeCalls,
		AICalls:          body.AICalls,
	}, nil
}
