package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	placesapi "google.golang.org/api/places/v1"

	"github.com/jonathan/lead-collector/internal/config"
	"github.com/jonathan/lead-collector/internal/types"
)

const testKey = "test-key"

// fakePlaces answers text searches from a map of query -> raw response body.
// Queries without an entry get an empty object.
type fakePlaces struct {
	mu       sync.Mutex
	searches map[string]string
	status   map[string]int
	details  map[string]string
	queries  []string
	requests []*http.Request
	bodies   []placesapi.GoogleMapsPlacesV1SearchTextRequest
}

func (f *fakePlaces) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/places:searchText", func(w http.ResponseWriter, r *http.Request) {
		var req placesapi.GoogleMapsPlacesV1SearchTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.queries = append(f.queries, req.TextQuery)
		f.requests = append(f.requests, r)
		f.bodies = append(f.bodies, req)
		status := f.status[req.TextQuery]
		body, ok := f.searches[req.TextQuery]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
		}
		if !ok {
			body = `{}`
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("GET /v1/places/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body, ok := f.details[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func (f *fakePlaces) seenQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *fakePlaces) seenRequests() ([]*http.Request, []placesapi.GoogleMapsPlacesV1SearchTextRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...), append([]placesapi.GoogleMapsPlacesV1SearchTextRequest(nil), f.bodies...)
}

// apiKey returns the key a request was authenticated with.
func apiKey(r *http.Request) string {
	if key := r.Header.Get("X-Goog-Api-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("key")
}

func newTestLookup(t *testing.T, fake *fakePlaces, opts Options) *Lookup {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	opts.BaseURL = server.URL
	if opts.APIKey == "" {
		opts.APIKey = testKey
	}
	if opts.Variants == nil {
		opts.Variants = []string{"{niche} {city}", "loja {niche} {city}"}
	}
	lookup, err := NewLookup(context.Background(), opts)
	require.NoError(t, err)
	return lookup
}

func placesJSON(places ...string) string {
	return `{"places": [` + strings.Join(places, ",") + `]}`
}

func placeJSON(id, name, phone, website string) string {
	b, _ := json.Marshal(map[string]any{
		"id":                       id,
		"displayName":              map[string]string{"text": name},
		"formattedAddress":         "Rua XV de Novembro, Curitiba - PR",
		"internationalPhoneNumber": phone,
		"websiteUri":               website,
	})
	return string(b)
}

func TestSearch_DeduplicatesAcrossVariantsIgnoringCase(t *testing.T) {
	fake := &fakePlaces{searches: map[string]string{
		"padaria Curitiba": placesJSON(
			placeJSON("1", "Padaria Central", "+55 41 3333-4444", "https://central.com.br"),
		),
		"loja padaria Curitiba": placesJSON(
			placeJSON("2", "PADARIA CENTRAL", "+55 41 0000-0000", ""),
			placeJSON("3", "Padaria do Bairro", "", ""),
		),
	}}
	lookup := newTestLookup(t, fake, Options{})

	records, err := lookup.Search(context.Background(), "padaria", "Curitiba")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Padaria Central", records[0].Name)
	assert.Equal(t, "+55 41 3333-4444", records[0].Phone)
	assert.Equal(t, "https://central.com.br", records[0].Website)
	assert.Equal(t, "Rua XV de Novembro, Curitiba - PR", records[0].Address)
	assert.Equal(t, "1", records[0].PlaceID)
	assert.Equal(t, "Padaria do Bairro", records[1].Name)
	assert.Empty(t, records[1].Contacts().Found())
}

func TestSearch_DropsRecordsWithoutName(t *testing.T) {
	fake := &fakePlaces{searches: map[string]string{
		"padaria Curitiba": placesJSON(
			placeJSON("1", "", "+55 41 3333-4444", ""),
			placeJSON("2", "   ", "", ""),
			placeJSON("3", "Padaria Central", "", ""),
			`{"id": "4"}`,
			`{"displayName": {"text": "Padaria Sem Id"}}`,
		),
	}}
	lookup := newTestLookup(t, fake, Options{Variants: []string{"{niche} {city}"}})

	records, err := lookup.Search(context.Background(), "padaria", "Curitiba")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Padaria Central", records[0].Name)
}

func TestSearch_ToleratesVariantFailure(t *testing.T) {
	fake := &fakePlaces{
		searches: map[string]string{
			"padaria Curitiba":      `{"error": {"code": 500, "message": "backend error"}}`,
			"loja padaria Curitiba": placesJSON(placeJSON("1", "Padaria Central", "", "")),
		},
		status: map[string]int{"padaria Curitiba": http.StatusInternalServerError},
	}
	lookup := newTestLookup(t, fake, Options{})

	records, err := lookup.Search(context.Background(), "padaria", "Curitiba")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"padaria Curitiba", "loja padaria Curitiba"}, fake.seenQueries())
}

func TestSearch_TotalFailureYieldsEmptyList(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"http error", `{"error": {"code": 403, "message": "API key not valid"}}`, http.StatusForbidden},
		{"malformed JSON", `{"places": [`, http.StatusOK},
		{"wrong shape", `{"places": "nope"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePlaces{
				searches: map[string]string{"padaria Curitiba": tt.body, "loja padaria Curitiba": tt.body},
				status:   map[string]int{"padaria Curitiba": tt.status, "loja padaria Curitiba": tt.status},
			}
			lookup := newTestLookup(t, fake, Options{})

			records, err := lookup.Search(context.Background(), "padaria", "Curitiba")
			require.NoError(t, err)
			assert.Empty(t, records)
			assert.Len(t, fake.seenQueries(), 2)
		})
	}
}

func TestSearch_NoResults(t *testing.T) {
	lookup := newTestLookup(t, &fakePlaces{}, Options{})

	records, err := lookup.Search(context.Background(), "padaria", "Curitiba")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearch_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		niche string
		city  string
	}{
		{"empty niche", testKey, "", "Curitiba"},
		{"blank city", testKey, "padaria", "   "},
		{"placeholder key", "SUA_CHAVE_API_AQUI", "padaria", "Curitiba"},
		{"blank key", "  ", "padaria", "Curitiba"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePlaces{}
			server := httptest.NewServer(fake.handler(t))
			defer server.Close()
			lookup, err := NewLookup(context.Background(), Options{APIKey: tt.key, BaseURL: server.URL})
			require.NoError(t, err)

			records, err := lookup.Search(context.Background(), tt.niche, tt.city)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuery))
			assert.NotEmpty(t, errors.GetAllHints(err))
			assert.Nil(t, records)
			assert.Empty(t, fake.seenQueries(), "no request may be sent for an invalid query")
		})
	}
}

func TestSearch_RequestShape(t *testing.T) {
	fake := &fakePlaces{}
	lookup := newTestLookup(t, fake, Options{Variants: []string{"{niche} em {city}"}, MaxResultCount: 15})

	_, err := lookup.Search(context.Background(), "padaria", "Curitiba")
	require.NoError(t, err)
	requests, bodies := fake.seenRequests()
	require.Len(t, requests, 1)

	req := requests[0]
	assert.Equal(t, testKey, apiKey(req))
	assert.Equal(t, SearchFieldMask, req.URL.Query().Get("fields"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	body := bodies[0]
	assert.Equal(t, "padaria em Curitiba", body.TextQuery)
	assert.Equal(t, "pt-BR", body.LanguageCode)
	assert.Equal(t, "BR", body.RegionCode)
	assert.Equal(t, int64(15), body.MaxResultCount)
}

func TestSearch_SpacesVariantCalls(t *testing.T) {
	fake := &fakePlaces{}
	lookup := newTestLookup(t, fake, Options{
		Variants:   []string{"{niche} {city}", "loja {niche} {city}", "empresa {niche} {city}"},
		QueryDelay: 40 * time.Millisecond,
	})

	start := time.Now()
	_, err := lookup.Search(context.Background(), "padaria", "Curitiba")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.Len(t, fake.seenQueries(), 3)
}

func TestSearch_Cancelled(t *testing.T) {
	fake := &fakePlaces{}
	lookup := newTestLookup(t, fake, Options{QueryDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := lookup.Search(ctx, "padaria", "Curitiba")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return len(fake.seenQueries()) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("search did not stop after cancellation")
	}
}

func TestSearch_DetailsFollowUp(t *testing.T) {
	fake := &fakePlaces{
		searches: map[string]string{
			"padaria Curitiba": placesJSON(
				placeJSON("p1", "Padaria Central", "", ""),
				placeJSON("p2", "Padaria Completa", "+55 41 1111-2222", "https://completa.com.br"),
				placeJSON("p3", "Padaria Sumida", "", ""),
			),
		},
		details: map[string]string{
			"p1": `{"id": "p1", "displayName": {"text": "Padaria Central"}, "nationalPhoneNumber": "(41) 3333-4444", "websiteUri": "https://central.com.br"}`,
		},
	}
	lookup := newTestLookup(t, fake, Options{Variants: []string{"{niche} {city}"}, FetchDetails: true})

	records, err := lookup.Search(context.Background(), "padaria", "Curitiba")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "(41) 3333-4444", records[0].Phone)
	assert.Equal(t, "https://central.com.br", records[0].Website)
	assert.Equal(t, "+55 41 1111-2222", records[1].Phone)
	assert.Empty(t, records[2].Website, "failed details keep the record unchanged")
	assert.Equal(t, "Padaria Sumida", records[2].Name)
}

func TestCheckKey(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		fake := &fakePlaces{searches: map[string]string{
			"restaurante São Paulo": placesJSON(placeJSON("1", "Cantina", "", "")),
		}}
		lookup := newTestLookup(t, fake, Options{})

		count, err := lookup.CheckKey(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("rejected upstream", func(t *testing.T) {
		fake := &fakePlaces{
			searches: map[string]string{"restaurante São Paulo": `{"error": {"code": 400, "message": "API key not valid. Please pass a valid API key.", "status": "INVALID_ARGUMENT"}}`},
			status:   map[string]int{"restaurante São Paulo": http.StatusBadRequest},
		}
		lookup := newTestLookup(t, fake, Options{})

		_, err := lookup.CheckKey(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
		assert.Contains(t, err.Error(), "API key not valid")

		var failure *LookupFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, http.StatusBadRequest, failure.StatusCode)
	})

	t.Run("missing key", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
		defer server.Close()

		lookup, err := NewLookup(context.Background(), Options{BaseURL: server.URL})
		require.NoError(t, err)
		_, err = lookup.CheckKey(context.Background())
		assert.True(t, errors.Is(err, ErrInvalidQuery))
		assert.Zero(t, calls.Load())
	})
}

func TestVariants(t *testing.T) {
	lookup, err := NewLookup(context.Background(), Options{APIKey: testKey})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"padaria Curitiba",
		"padaria em Curitiba",
		"distribuidora padaria Curitiba",
		"comercio padaria Curitiba",
		"loja padaria Curitiba",
		"empresa padaria Curitiba",
	}, lookup.Variants(" padaria ", "Curitiba "))

	dup, err := NewLookup(context.Background(), Options{Variants: []string{"{niche} {city}", "{niche}  {city}", "{niche}"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"padaria Curitiba", "padaria"}, dup.Variants("padaria", "Curitiba"))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.PlacesConfig{
		APIKey:             "k",
		BaseURL:            "http://localhost:1",
		MaxResultCount:     10,
		QueryDelay:         time.Second,
		Variants:           []string{"{niche}"},
		FetchDetails:       true,
		DetailsConcurrency: 2,
	}

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "k", opts.APIKey)
	assert.Equal(t, 10, opts.MaxResultCount)
	assert.True(t, opts.FetchDetails)
	assert.Equal(t, []string{"{niche}"}, opts.Variants)
}

func TestLookupFailure_Error(t *testing.T) {
	err := &LookupFailure{Query: "padaria Curitiba", StatusCode: 403, Message: "Forbidden"}
	assert.Equal(t, `places lookup failed for "padaria Curitiba": Forbidden (HTTP 403)`, err.Error())

	wrapped := &LookupFailure{Query: "q", Message: "HTTP request failed", Cause: errors.New("refused")}
	assert.Equal(t, `places lookup failed for "q": HTTP request failed: refused`, wrapped.Error())
	assert.True(t, errors.Is(wrapped, ErrUpstreamUnavailable))
}

func TestRecord_PrefersInternationalPhone(t *testing.T) {
	p := &placesapi.GoogleMapsPlacesV1Place{
		DisplayName:              &placesapi.GoogleTypeLocalizedText{Text: " Padaria "},
		InternationalPhoneNumber: "+55 41 3333-4444",
		NationalPhoneNumber:      "(41) 3333-4444",
	}
	assert.Equal(t, types.BusinessRecord{Name: "Padaria", Phone: "+55 41 3333-4444"}, record(p))

	p.InternationalPhoneNumber = ""
	p.DisplayName = nil
	assert.Equal(t, types.BusinessRecord{Phone: "(41) 3333-4444"}, record(p))
}

func TestCheckPlace(t *testing.T) {
	assert.NoError(t, checkPlace(&placesapi.GoogleMapsPlacesV1Place{Id: "p1"}))
	assert.Error(t, checkPlace(&placesapi.GoogleMapsPlacesV1Place{DisplayName: &placesapi.GoogleTypeLocalizedText{Text: "Padaria"}}))
	assert.Error(t, checkPlace(nil))
}
