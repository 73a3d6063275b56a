package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipstash/snipstash/pkg/eventstream"
	"github.com/snipstash/snipstash/pkg/logger"
	"github.com/snipstash/snipstash/pkg/search"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage/inmemory"
	testutils "github.com/snipstash/snipstash/pkg/utils/test"
	"github.com/snipstash/snipstash/pkg/vector/bruteforce"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

func jsonRequest(method, target string, payload any) *http.Request {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, target, body)
	Expect(err).NotTo(HaveOccurred())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeBody[T any](resp *http.Response) T {
	var out T
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(data, &out)).To(Succeed(), string(data))
	return out
}

var _ = Describe("Server", func() {
	var (
		ctx       context.Context
		embedder  *testutils.MockEmbedder
		store     *inmemory.Store
		publisher *testutils.MockPublisher
		server    *Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		store = inmemory.NewStore(embedder, logger.Nop())
		publisher = testutils.NewMockPublisher()

		searcher := search.NewSearcher(
			embedder,
			store,
			search.NewStoreMatcher(store, bruteforce.NewRanker()),
			logger.Nop(),
		)
		server = NewServer(Config{ListenAddr: ":0"}, store, searcher, publisher, nil, logger.Nop())
	})

	createFields := snippet.Fields{
		Title:    "quicksort",
		Code:     "func qsort(a []int) {}",
		Language: "go",
		Tags:     []string{"sorting"},
	}

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})

	Describe("POST /v1/snippets", func() {
		It("creates a snippet and returns 201", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/snippets", createFields))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			created := decodeBody[snippet.Snippet](resp)
			Expect(created.ID).To(Equal(int64(1)))
			Expect(created.Title).To(Equal("quicksort"))
		})

		It("publishes a created event", func() {
			_, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/snippets", createFields))
			Expect(err).NotTo(HaveOccurred())

			Expect(publisher.Events).To(HaveLen(1))
			Expect(publisher.Events[0].EventType).To(Equal(eventstream.EventTypeSnippetCreated))
			Expect(publisher.Events[0].Snippet.Title).To(Equal("quicksort"))
		})

		It("returns 422 for invalid fields", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/snippets", snippet.Fields{Language: "go"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))

			body := decodeBody[ErrorResponse](resp)
			Expect(body.Error).To(ContainSubstring("title is required"))
			Expect(publisher.Events).To(BeEmpty())
		})

		It("returns 201 even when embedding fails", func() {
			embedder.FailAll = true
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/snippets", createFields))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			created := decodeBody[snippet.Snippet](resp)
			got, err := store.Get(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Searchable()).To(BeFalse())
		})

		It("never publishes when the publisher fails, but still succeeds", func() {
			publisher.Fail = true
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/snippets", createFields))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		})
	})

	Describe("GET /v1/snippets", func() {
		It("lists snippets with count", func() {
			for i := 0; i < 3; i++ {
				f := createFields
				f.Title = fmt.Sprintf("snippet-%d", i)
				_, err := store.Create(ctx, f)
				Expect(err).NotTo(HaveOccurred())
			}

			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/snippets?offset=1&limit=2", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			page := decodeBody[ListSnippetsResponse](resp)
			Expect(page.Count).To(Equal(2))
			Expect(page.Snippets[0].Title).To(Equal("snippet-1"))
		})

		It("returns an empty list for an empty store", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/snippets", nil))
			Expect(err).NotTo(HaveOccurred())

			page := decodeBody[ListSnippetsResponse](resp)
			Expect(page.Count).To(BeZero())
			Expect(page.Snippets).To(BeEmpty())
		})
	})

	Describe("GET /v1/snippets/:id", func() {
		It("fetches a snippet", func() {
			created, err := store.Create(ctx, createFields)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(jsonRequest(http.MethodGet, fmt.Sprintf("/v1/snippets/%d", created.ID), nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			got := decodeBody[snippet.Snippet](resp)
			Expect(got.ID).To(Equal(created.ID))
		})

		It("returns 404 for an unknown ID", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/snippets/42", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 400 for a non-integer ID", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/snippets/abc", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("PUT /v1/snippets/:id", func() {
		var created *snippet.Snippet

		BeforeEach(func() {
			var err error
			created, err = store.Create(ctx, createFields)
			Expect(err).NotTo(HaveOccurred())
		})

		It("applies a partial update and publishes an event", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPut,
				fmt.Sprintf("/v1/snippets/%d", created.ID),
				map[string]any{"language": "python"},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			got := decodeBody[snippet.Snippet](resp)
			Expect(got.Language).To(Equal("python"))
			Expect(got.Title).To(Equal("quicksort"))

			Expect(publisher.Events).To(HaveLen(1))
			Expect(publisher.Events[0].EventType).To(Equal(eventstream.EventTypeSnippetUpdated))
		})

		It("returns 422 when blanking a required field", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPut,
				fmt.Sprintf("/v1/snippets/%d", created.ID),
				map[string]any{"title": "   "},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})

		It("returns 404 for an unknown ID", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/snippets/42",
				map[string]any{"language": "python"},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("DELETE /v1/snippets/:id", func() {
		It("deletes and returns 204", func() {
			created, err := store.Create(ctx, createFields)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(jsonRequest(http.MethodDelete, fmt.Sprintf("/v1/snippets/%d", created.ID), nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			Expect(publisher.Events).To(HaveLen(1))
			Expect(publisher.Events[0].EventType).To(Equal(eventstream.EventTypeSnippetDeleted))
			Expect(publisher.Events[0].Snippet.ID).To(Equal(created.ID))
			Expect(publisher.Events[0].Snippet.Title).To(Equal("quicksort"))
			Expect(publisher.Events[0].Snippet.Language).To(Equal("go"))

			resp, err = server.app.Test(jsonRequest(http.MethodDelete, fmt.Sprintf("/v1/snippets/%d", created.ID), nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("POST /v1/search", func() {
		sep := snippet.SourceSeparator

		BeforeEach(func() {
			embedder.Embeddings = map[string][]float32{
				"quicksort" + sep + "" + sep + "func qsort(a []int) {}":   {1, 0, 0},
				"linked list" + sep + "" + sep + "type node struct{}":     {0, 1, 0},
				"fast sorting": {1, 0, 0},
			}

			_, err := store.Create(ctx, snippet.Fields{Title: "quicksort", Code: "func qsort(a []int) {}", Language: "go"})
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Create(ctx, snippet.Fields{Title: "linked list", Code: "type node struct{}", Language: "go"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns ranked results", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search",
				map[string]any{"query": "fast sorting", "limit": 5},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			result := decodeBody[search.Response](resp)
			Expect(result.Count).To(Equal(2))
			Expect(result.Results[0].Title).To(Equal("quicksort"))
			Expect(result.Results[0].Score).To(BeNumerically(">", result.Results[1].Score))
		})

		It("applies the default limit when the body carries none", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search",
				map[string]any{"query": "fast sorting"},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			result := decodeBody[search.Response](resp)
			Expect(result.Count).To(Equal(2))
		})

		It("returns an empty result set for an explicit zero limit", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search",
				map[string]any{"query": "fast sorting", "limit": 0},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			result := decodeBody[search.Response](resp)
			Expect(result.Count).To(BeZero())
			Expect(result.Results).To(BeEmpty())
		})

		It("returns 422 for an empty query", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search",
				SearchRequest{Query: "   "},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})

		It("returns 502 when the embedding provider fails", func() {
			embedder.FailAll = true
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search",
				SearchRequest{Query: "anything"},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})
	})

	Describe("GET /v1/languages", func() {
		It("returns the distinct languages", func() {
			for _, lang := range []string{"go", "python", "go"} {
				f := createFields
				f.Language = lang
				_, err := store.Create(ctx, f)
				Expect(err).NotTo(HaveOccurred())
			}

			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/languages", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			langs := decodeBody[LanguagesResponse](resp)
			Expect(langs.Languages).To(Equal([]string{"go", "python"}))
		})
	})
})
