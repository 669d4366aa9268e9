package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/coinview/backend/internal/apperrors"
)

func newCoinCapTestClient(graphqlURL, restURL string) *CoinCapClient {
	return NewCoinCapClient(CoinCapConfig{GraphQLURL: graphqlURL, RESTURL: restURL}, zap.NewNop())
}

func TestCoinCap_ListTopAssets_GraphQL(t *testing.T) {
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		var body struct {
			Variables map[string]interface{} `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Variables["limit"] != float64(2) {
			t.Errorf("Expected limit 2, got %v", body.Variables["limit"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"assets": {"edges": [
			{"node": {"id": "bitcoin", "name": "Bitcoin", "symbol": "BTC", "rank": "1", "priceUsd": "50000.5", "changePercent24Hr": "2.1", "volumeUsd24Hr": "1000000"}},
			{"node": {"id": "ethereum", "name": "Ethereum", "symbol": "ETH", "rank": 2, "priceUsd": 3000, "changePercent24Hr": null, "volumeUsd24Hr": "500000"}}
		]}}}`))
	}))
	defer gql.Close()

	client := newCoinCapTestClient(gql.URL, "http://127.0.0.1:1")
	quotes, err := client.ListTopAssets(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListTopAssets failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("Expected 2 quotes, got %d", len(quotes))
	}
	// String-typed numbers and nulls both decode.
	if quotes[0].PriceUSD != 50000.5 || quotes[0].Rank != 1 {
		t.Errorf("Unexpected first quote: %+v", quotes[0])
	}
	if quotes[1].PriceUSD != 3000 || quotes[1].ChangePct24h != 0 {
		t.Errorf("Unexpected second quote: %+v", quotes[1])
	}
	if quotes[0].Source != "coincap" {
		t.Errorf("Expected coincap source, got %q", quotes[0].Source)
	}
}

func TestCoinCap_ListTopAssets_FallsBackToREST(t *testing.T) {
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gql.Close()

	rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets" {
			t.Errorf("Expected /assets, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "3" {
			t.Errorf("Expected limit=3, got %q", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [
			{"id": "bitcoin", "name": "Bitcoin", "symbol": "BTC", "rank": "1", "priceUsd": "50000"}
		]}`))
	}))
	defer rest.Close()

	client := newCoinCapTestClient(gql.URL, rest.URL)
	quotes, err := client.ListTopAssets(context.Background(), 3)
	if err != nil {
		t.Fatalf("Expected the REST fallback to succeed: %v", err)
	}
	if len(quotes) != 1 || quotes[0].ID != "bitcoin" {
		t.Errorf("Unexpected fallback quotes: %v", quotes)
	}
}

func TestCoinCap_RateLimitIsTyped(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	gql := httptest.NewServer(handler)
	defer gql.Close()
	rest := httptest.NewServer(handler)
	defer rest.Close()

	client := newCoinCapTestClient(gql.URL, rest.URL)
	_, err := client.ListTopAssets(context.Background(), 5)
	if !apperrors.IsRateLimited(err) {
		t.Errorf("Expected a rate limit error, got %v", err)
	}
}

func TestCoinCap_GetAsset(t *testing.T) {
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"asset": {"id": "bitcoin", "name": "Bitcoin", "symbol": "BTC", "rank": "1", "priceUsd": "50000"}}}`))
	}))
	defer gql.Close()

	client := newCoinCapTestClient(gql.URL, "http://127.0.0.1:1")
	quote, err := client.GetAsset(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if quote.ID != "bitcoin" || quote.PriceUSD != 50000 {
		t.Errorf("Unexpected quote: %+v", quote)
	}
}

func TestCoinCap_GetAsset_NotFound(t *testing.T) {
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"asset": null}}`))
	}))
	defer gql.Close()

	client := newCoinCapTestClient(gql.URL, "http://127.0.0.1:1")
	if _, err := client.GetAsset(context.Background(), "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCoinCap_GetAssetsByIDs_DeduplicatesIDs(t *testing.T) {
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Variables struct {
				IDs []string `json:"ids"`
			} `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Variables.IDs) != 2 {
			t.Errorf("Expected 2 deduplicated ids, got %v", body.Variables.IDs)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"assets": {"edges": [
			{"node": {"id": "bitcoin", "symbol": "BTC", "priceUsd": "50000"}},
			{"node": {"id": "ethereum", "symbol": "ETH", "priceUsd": "3000"}}
		]}}}`))
	}))
	defer gql.Close()

	client := newCoinCapTestClient(gql.URL, "http://127.0.0.1:1")
	byID, err := client.GetAssetsByIDs(context.Background(), []string{"bitcoin", "ethereum", "bitcoin", ""})
	if err != nil {
		t.Fatalf("GetAssetsByIDs failed: %v", err)
	}
	if len(byID) != 2 {
		t.Errorf("Expected 2 quotes, got %d", len(byID))
	}
	if byID["bitcoin"].PriceUSD != 50000 {
		t.Errorf("Unexpected bitcoin quote: %+v", byID["bitcoin"])
	}
}

func TestCoinCap_GetAssetsByIDs_EmptyInput(t *testing.T) {
	client := newCoinCapTestClient("http://127.0.0.1:1", "http://127.0.0.1:1")
	byID, err := client.GetAssetsByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected no error for an empty id set: %v", err)
	}
	if len(byID) != 0 {
		t.Errorf("Expected an empty map, got %v", byID)
	}
}

func TestCoinCap_Search_FiltersClientSide(t *testing.T) {
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"assets": {"edges": [
			{"node": {"id": "bitcoin", "name": "Bitcoin", "symbol": "BTC"}},
			{"node": {"id": "ethereum", "name": "Ethereum", "symbol": "ETH"}},
			{"node": {"id": "bitcoin-cash", "name": "Bitcoin Cash", "symbol": "BCH"}}
		]}}}`))
	}))
	defer gql.Close()

	client := newCoinCapTestClient(gql.URL, "http://127.0.0.1:1")
	quotes, err := client.Search(context.Background(), "bitco", 50)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(quotes))
	}
	if quotes[0].ID != "bitcoin" || quotes[1].ID != "bitcoin-cash" {
		t.Errorf("Unexpected matches: %v", quotes)
	}
}

func TestCoinCap_History_RESTFallback(t *testing.T) {
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": [{"message": "no such field"}]}`))
	}))
	defer gql.Close()

	rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/bitcoin/history" {
			t.Errorf("Expected history path, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "d1" {
			t.Errorf("Expected interval d1, got %q", r.URL.Query().Get("interval"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [
			{"priceUsd": "49000", "time": 1700000000000},
			{"priceUsd": "50000", "time": 1700086400000}
		]}`))
	}))
	defer rest.Close()

	client := newCoinCapTestClient(gql.URL, rest.URL)
	points, err := client.History(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	if points[0].Timestamp != 1700000000000 || points[0].Price != 49000 {
		t.Errorf("Unexpected first point: %+v", points[0])
	}
}

func TestCoinCap_SendsAPIKey(t *testing.T) {
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"assets": {"edges": []}}}`))
	}))
	defer gql.Close()

	client := NewCoinCapClient(CoinCapConfig{GraphQLURL: gql.URL, RESTURL: "http://127.0.0.1:1", APIKey: "secret"}, zap.NewNop())
	if _, err := client.ListTopAssets(context.Background(), 1); err != nil {
		t.Fatalf("ListTopAssets failed: %v", err)
	}
}

func TestLooseFloat(t *testing.T) {
	var payload struct {
		A looseFloat `json:"a"`
		B looseFloat `json:"b"`
		C looseFloat `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": "12.5", "b": 7, "c": null}`), &payload); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if payload.A != 12.5 || payload.B != 7 || payload.C != 0 {
		t.Errorf("Unexpected values: %+v", payload)
	}
	if err := json.Unmarshal([]byte(`{"a": "abc"}`), &payload); err == nil {
		t.Error("Expected an error for a non-numeric string")
	}
}
