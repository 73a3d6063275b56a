package backfill

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipstash/snipstash/pkg/logger"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage/inmemory"
	testutils "github.com/snipstash/snipstash/pkg/utils/test"
)

func TestBackfill(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Backfill Suite")
}

var _ = Describe("Backfiller", func() {
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

	create := func(title string) *snippet.Snippet {
		rec, err := store.Create(ctx, snippet.Fields{
			Title:    title,
			Code:     "func " + title + "() {}",
			Language: "go",
		})
		Expect(err).NotTo(HaveOccurred())
		return rec
	}

	It("re-embeds records persisted without a vector", func() {
		embedder.FailAll = true
		rec := create("retry")
		Expect(rec.Searchable()).To(BeFalse())

		embedder.FailAll = false
		result, err := NewBackfiller(store, embedder, logger.Nop(), Options{}).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Scanned).To(Equal(1))
		Expect(result.Candidates).To(Equal(1))
		Expect(result.Embedded).To(Equal(1))
		Expect(result.Failed).To(BeZero())

		got, err := store.Get(ctx, rec.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Searchable()).To(BeTrue())
		Expect(got.EmbeddingModel).To(Equal(embedder.ModelVersion()))
	})

	It("re-embeds records produced by an older model version", func() {
		rec := create("upgraded")
		Expect(rec.EmbeddingModel).To(Equal("mock/v1"))

		embedder.Model = "mock/v2"
		result, err := NewBackfiller(store, embedder, logger.Nop(), Options{}).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Embedded).To(Equal(1))

		got, err := store.Get(ctx, rec.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.EmbeddingModel).To(Equal("mock/v2"))
	})

	It("leaves up-to-date records alone", func() {
		create("current")

		result, err := NewBackfiller(store, embedder, logger.Nop(), Options{}).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Scanned).To(Equal(1))
		Expect(result.Candidates).To(BeZero())
		Expect(result.Embedded).To(BeZero())
	})

	It("commits nothing in dry-run mode", func() {
		embedder.FailAll = true
		rec := create("untouched")
		embedder.FailAll = false

		result, err := NewBackfiller(store, embedder, logger.Nop(), Options{DryRun: true}).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Candidates).To(Equal(1))
		Expect(result.Embedded).To(BeZero())

		got, err := store.Get(ctx, rec.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Searchable()).To(BeFalse())
	})

	It("counts embedding failures without aborting the run", func() {
		embedder.FailAll = true
		create("first")
		create("second")

		result, err := NewBackfiller(store, embedder, logger.Nop(), Options{}).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Candidates).To(Equal(2))
		Expect(result.Failed).To(Equal(2))
		Expect(result.Embedded).To(BeZero())
	})

	It("includes the model and counts in the summary", func() {
		create("summarized")
		embedder.Model = "mock/v2"

		result, err := NewBackfiller(store, embedder, logger.Nop(), Options{}).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Summary()).To(ContainSubstring("mock/v2"))
		Expect(result.Summary()).To(ContainSubstring("1 embedded"))
	})
})
