package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	"quotebot/internal/domain/model"
)

// quoteFields 请求的固定字段列表
var quoteFields = []string{
	"regularMarketPrice",
	"regularMarketPreviousClose",
	"regularMarketChange",
	"regularMarketChangePercent",
	"longName",
	"shortName",
	"marketState",
	"quoteType",
	"preMarketPrice",
	"preMarketChange",
	"preMarketChangePercent",
	"postMarketPrice",
	"postMarketChange",
	"postMarketChangePercent",
	"currency",
	"fullExchangeName",
}

type quoteResponse struct {
	QuoteResponse *struct {
		Result []model.RawSnapshot `json:"result"`
		Error  json.RawMessage     `json:"error"`
	} `json:"quoteResponse"`
}

// errorBody 行情源在 4xx 时返回的错误结构
type errorBody struct {
	Finance struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"finance"`
}

// Fetch 一次请求拉取多个代码的原始快照，不做重试
func (c *Client) Fetch(ctx context.Context, symbols []string) ([]model.RawSnapshot, error) {
	cleaned := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: no symbols", model.ErrInvalidArgument)
	}

	query := maps.Clone(c.query)
	query.Set("formatted", "true")
	query.Set("symbols", strings.Join(cleaned, ","))
	query.Set("fields", strings.Join(quoteFields, ","))

	url := fmt.Sprintf("%s/v7/finance/quote?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: performing request: %w", model.ErrProviderUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: rate limited", model.ErrProviderUnavailable)
	case res.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: unexpected status code: %d", model.ErrProviderUnavailable, res.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status code: %d%s",
			model.ErrProviderUnavailable, res.StatusCode, describeError(res.Body))
	}

	var body quoteResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: reading response: %w", model.ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("%w: decoding quote response: %w", model.ErrMalformedResponse, err)
	}
	if body.QuoteResponse == nil {
		return nil, fmt.Errorf("%w: missing quoteResponse envelope", model.ErrMalformedResponse)
	}
	return body.QuoteResponse.Result, nil
}

func describeError(r io.Reader) string {
	var eb errorBody
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&eb); err != nil {
		return ""
	}
	if d := eb.Finance.Error.Description; d != "" {
		return " (" + d + ")"
	}
	return ""
}
