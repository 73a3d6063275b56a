package inmemory_test

import (
	"context"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipstash/snipstash/pkg/logger"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/storage/inmemory"
	testutils "github.com/snipstash/snipstash/pkg/utils/test"
)

func TestInmemory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Inmemory Store Suite")
}

var _ = Describe("Store", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		store    *inmemory.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		store = inmemory.NewStore(embedder, logger.Nop())
	})

	fields := func(title string) snippet.Fields {
		return snippet.Fields{
			Title:    title,
			Code:     "func main() {}",
			Language: "go",
			Tags:     []string{"demo"},
		}
	}

	Describe("Create", func() {
		It("assigns sequential IDs and timestamps", func() {
			a, err := store.Create(ctx, fields("first"))
			Expect(err).NotTo(HaveOccurred())
			b, err := store.Create(ctx, fields("second"))
			Expect(err).NotTo(HaveOccurred())

			Expect(a.ID).To(Equal(int64(1)))
			Expect(b.ID).To(Equal(int64(2)))
			Expect(a.CreatedAt).NotTo(BeZero())
		})

		It("computes and stores the embedding", func() {
			s, err := store.Create(ctx, fields("embedded"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Searchable()).To(BeTrue())
			Expect(s.EmbeddingModel).To(Equal("mock/v1"))
			Expect(embedder.Calls).To(HaveLen(1))
			Expect(embedder.Calls[0]).To(Equal(s.EmbeddingText()))
		})

		It("rejects invalid fields", func() {
			_, err := store.Create(ctx, snippet.Fields{Code: "x", Language: "go"})
			Expect(err).To(MatchError(snippet.ErrValidation))
		})

		It("persists non-searchable when embedding fails", func() {
			embedder.FailAll = true
			s, err := store.Create(ctx, fields("no vector"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Searchable()).To(BeFalse())

			got, err := store.Get(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("no vector"))
			Expect(got.Searchable()).To(BeFalse())
		})
	})

	Describe("Get", func() {
		It("returns NotFoundError for unknown IDs", func() {
			_, err := store.Get(ctx, 42)
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("returns an independent copy", func() {
			s, err := store.Create(ctx, fields("copy"))
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			got.Title = "mutated"

			again, err := store.Get(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Title).To(Equal("copy"))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for _, title := range []string{"a", "b", "c", "d", "e"} {
				_, err := store.Create(ctx, fields(title))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("orders by ID ascending", func() {
			out, err := store.List(ctx, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(5))
			for i := 1; i < len(out); i++ {
				Expect(out[i].ID).To(BeNumerically(">", out[i-1].ID))
			}
		})

		It("honors offset and limit", func() {
			out, err := store.List(ctx, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
			Expect(out[0].Title).To(Equal("c"))
			Expect(out[1].Title).To(Equal("d"))
		})

		It("returns empty past the end", func() {
			out, err := store.List(ctx, 99, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeEmpty())
		})
	})

	Describe("Update", func() {
		var created *snippet.Snippet

		BeforeEach(func() {
			var err error
			created, err = store.Create(ctx, fields("original"))
			Expect(err).NotTo(HaveOccurred())
			embedder.Calls = nil
		})

		It("applies only the provided fields", func() {
			lang := "python"
			got, err := store.Update(ctx, created.ID, snippet.Update{Language: &lang})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Language).To(Equal("python"))
			Expect(got.Title).To(Equal("original"))
		})

		It("does not re-embed when source text is untouched", func() {
			lang := "python"
			_, err := store.Update(ctx, created.ID, snippet.Update{Language: &lang})
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.Calls).To(BeEmpty())
		})

		It("re-embeds when the code changes", func() {
			code := "func changed() {}"
			got, err := store.Update(ctx, created.ID, snippet.Update{Code: &code})
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.Calls).To(HaveLen(1))
			Expect(embedder.Calls[0]).To(Equal(got.EmbeddingText()))
		})

		It("keeps the old record when re-embedding fails", func() {
			embedder.FailAll = true
			code := "func changed() {}"
			_, err := store.Update(ctx, created.ID, snippet.Update{Code: &code})
			Expect(err).To(HaveOccurred())

			got, err := store.Get(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Code).To(Equal("func main() {}"))
			Expect(got.Searchable()).To(BeTrue())
		})

		It("returns NotFoundError for unknown IDs", func() {
			lang := "python"
			_, err := store.Update(ctx, 42, snippet.Update{Language: &lang})
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("removes the record", func() {
			s, err := store.Create(ctx, fields("doomed"))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(ctx, s.ID)).To(Succeed())

			_, err = store.Get(ctx, s.ID)
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("reports NotFoundError on repeat delete", func() {
			s, err := store.Create(ctx, fields("doomed"))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(ctx, s.ID)).To(Succeed())
			Expect(storage.IsNotFound(store.Delete(ctx, s.ID))).To(BeTrue())
		})
	})

	Describe("AllVectors", func() {
		It("excludes non-searchable records and orders by ID", func() {
			_, err := store.Create(ctx, fields("one"))
			Expect(err).NotTo(HaveOccurred())

			embedder.FailAll = true
			_, err = store.Create(ctx, fields("two"))
			Expect(err).NotTo(HaveOccurred())
			embedder.FailAll = false

			_, err = store.Create(ctx, fields("three"))
			Expect(err).NotTo(HaveOccurred())

			candidates, err := store.AllVectors(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(HaveLen(2))
			Expect(candidates[0].ID).To(Equal(int64(1)))
			Expect(candidates[1].ID).To(Equal(int64(3)))
		})
	})

	Describe("Languages", func() {
		It("returns distinct languages sorted", func() {
			for _, lang := range []string{"go", "python", "go", "rust"} {
				f := fields("x")
				f.Language = lang
				_, err := store.Create(ctx, f)
				Expect(err).NotTo(HaveOccurred())
			}

			langs, err := store.Languages(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(langs).To(Equal([]string{"go", "python", "rust"}))
		})
	})

	Describe("SetEmbedding", func() {
		It("attaches a vector when the digest still matches", func() {
			embedder.FailAll = true
			created, err := store.Create(ctx, fields("pending"))
			Expect(err).NotTo(HaveOccurred())
			embedder.FailAll = false

			err = store.SetEmbedding(ctx, created.ID, created.SourceDigest(), []float32{0.5, 0.5, 0}, "mock/v2")
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Searchable()).To(BeTrue())
			Expect(got.EmbeddingModel).To(Equal("mock/v2"))
		})

		It("refuses a vector computed from stale text", func() {
			created, err := store.Create(ctx, fields("moving target"))
			Expect(err).NotTo(HaveOccurred())

			code := "func changed() {}"
			_, err = store.Update(ctx, created.ID, snippet.Update{Code: &code})
			Expect(err).NotTo(HaveOccurred())

			err = store.SetEmbedding(ctx, created.ID, created.SourceDigest(), []float32{1, 0, 0}, "mock/v2")
			Expect(err).To(MatchError(storage.ErrStaleDigest))
		})

		It("reports NotFoundError for an unknown ID", func() {
			err := store.SetEmbedding(ctx, 404, "digest", []float32{1, 0, 0}, "mock/v2")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("concurrency", func() {
		It("survives concurrent writers to distinct IDs", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.Create(ctx, fields("concurrent"))
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			out, err := store.List(ctx, 0, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(20))
		})

		It("serializes concurrent updates to the same ID", func() {
			s, err := store.Create(ctx, fields("contested"))
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					code := "func updated() {}"
					_, err := store.Update(ctx, s.ID, snippet.Update{Code: &code})
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			got, err := store.Get(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Code).To(Equal("func updated() {}"))
			Expect(got.Searchable()).To(BeTrue())
		})
	})
})
