package yahoo_test

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"quotebot/internal/domain/model"
	"quotebot/internal/infrastructure/provider/yahoo"
)

const gmeResponse = `{
  "quoteResponse": {
    "result": [{
      "symbol": "GME",
      "shortName": "GameStop Corporation",
      "quoteType": "EQUITY",
      "marketState": "PRE",
      "regularMarketPrice": {"raw": 180.0, "fmt": "180.00"},
      "regularMarketPreviousClose": {"raw": 150.0, "fmt": "150.00"},
      "regularMarketChange": {"raw": 30.0, "fmt": "30.00"},
      "regularMarketChangePercent": {"raw": 20.0, "fmt": "20.00%"},
      "preMarketPrice": {"raw": 185.5, "fmt": "185.50"},
      "preMarketChange": {"raw": 5.5, "fmt": "5.50"},
      "preMarketChangePercent": {"raw": 3.05, "fmt": "3.05%"},
      "postMarketPrice": {}
    }],
    "error": null
  }
}`

func respond(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock HTTP client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/v7/finance/quote", req.URL.Path)
			require.Equal(t, "GME,BRK.B", req.URL.Query().Get("symbols"))
			require.Equal(t, "true", req.URL.Query().Get("formatted"))
			require.Contains(t, req.URL.Query().Get("fields"), "preMarketChangePercent")
			require.NotEmpty(t, req.Header.Get("User-Agent"))
			return respond(http.StatusOK, gmeResponse)(req)
		}).
		Times(1)

	client := yahoo.NewClient(yahoo.WithHTTPClient(httpClient), yahoo.WithBaseURL("https://example.test"))

	// Act
	results, err := client.Fetch(t.Context(), []string{"GME", " ", "BRK.B"})

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]
	require.Equal(t, "GME", r.Symbol)
	require.Equal(t, "PRE", r.MarketState)
	require.Equal(t, "185.50", r.PreMarketPrice.String())
	require.True(t, r.RegularMarketPrice.Valid)
	require.False(t, r.PostMarketPrice.Valid)
	require.False(t, r.PostMarketChange.Valid)
}

func TestFetch_EmptySymbols(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client := yahoo.NewClient(yahoo.WithHTTPClient(httpClient))
	_, err := client.Fetch(t.Context(), []string{"", "  "})
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestFetch_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, fmt.Errorf("dial tcp: i/o timeout")).
		Times(1)

	client := yahoo.NewClient(yahoo.WithHTTPClient(httpClient))
	results, err := client.Fetch(t.Context(), []string{"GME"})
	require.ErrorIs(t, err, model.ErrProviderUnavailable)
	require.Nil(t, results)
}

func TestFetch_ErrStatusCodes(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusUnauthorized} {
		ctrl := gomock.NewController(t)
		httpClient := NewMockHTTPClient(ctrl)
		httpClient.EXPECT().
			Do(gomock.Any()).
			DoAndReturn(respond(status, `{"finance":{"error":{"code":"Unauthorized","description":"Invalid Crumb"}}}`)).
			Times(1)

		client := yahoo.NewClient(yahoo.WithHTTPClient(httpClient))
		_, err := client.Fetch(t.Context(), []string{"GME"})
		require.ErrorIsf(t, err, model.ErrProviderUnavailable, "status %d", status)
	}
}

func TestFetch_ErrMalformed(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`not json`, `{"finance": {}}`, `{"quoteResponse": {"result": "x"}}`} {
		ctrl := gomock.NewController(t)
		httpClient := NewMockHTTPClient(ctrl)
		httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(respond(http.StatusOK, body)).Times(1)

		client := yahoo.NewClient(yahoo.WithHTTPClient(httpClient))
		_, err := client.Fetch(t.Context(), []string{"GME"})
		require.ErrorIsf(t, err, model.ErrMalformedResponse, "body %q", body)
	}
}

func TestFetch_EmptyResult(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(respond(http.StatusOK, `{"quoteResponse":{"result":[],"error":null}}`)).
		Times(1)

	client := yahoo.NewClient(yahoo.WithHTTPClient(httpClient))
	results, err := client.Fetch(t.Context(), []string{"NOPE"})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestWithHeaderAndQuery(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "custom-agent", req.Header.Get("User-Agent"))
			require.Equal(t, "abc", req.URL.Query().Get("crumb"))
			return respond(http.StatusOK, `{"quoteResponse":{"result":[]}}`)(req)
		}).
		Times(1)

	client := yahoo.NewClient(
		yahoo.WithHTTPClient(httpClient),
		yahoo.WithHeader(http.Header{"User-Agent": []string{"custom-agent"}}),
		yahoo.WithQuery(map[string][]string{"crumb": {"abc"}}),
	)
	_, err := client.Fetch(t.Context(), []string{"GME"})
	require.NoError(t, err)
}
