package hashed_test

import (
	"context"
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipstash/snipstash/pkg/embeddings"
	"github.com/snipstash/snipstash/pkg/embeddings/hashed"
)

func TestHashed(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Hashed Embedder Suite")
}

var _ = Describe("Embedder", func() {
	var (
		embedder *hashed.Embedder
		ctx      context.Context
	)

	BeforeEach(func() {
		embedder = hashed.NewEmbedder(64)
		ctx = context.Background()
	})

	It("produces vectors of the configured dimension", func() {
		vec, err := embedder.Embed(ctx, "reverse a linked list")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(HaveLen(64))
		Expect(embedder.Dimensions()).To(Equal(64))
	})

	It("is deterministic for identical input", func() {
		a, err := embedder.Embed(ctx, "quicksort algorithm in go")
		Expect(err).NotTo(HaveOccurred())
		b, err := embedder.Embed(ctx, "quicksort algorithm in go")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("produces different vectors for different text", func() {
		a, err := embedder.Embed(ctx, "quicksort algorithm")
		Expect(err).NotTo(HaveOccurred())
		b, err := embedder.Embed(ctx, "http middleware chain")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
	})

	It("L2-normalizes output", func() {
		vec, err := embedder.Embed(ctx, "some text with several tokens here")
		Expect(err).NotTo(HaveOccurred())

		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		Expect(math.Sqrt(sum)).To(BeNumerically("~", 1.0, 1e-5))
	})

	It("rejects empty input with ErrCompute", func() {
		_, err := embedder.Embed(ctx, "   \n\t ")
		Expect(err).To(MatchError(embeddings.ErrCompute))
	})

	It("scores overlapping token sets closer than disjoint ones", func() {
		query, err := embedder.Embed(ctx, "sort numbers quickly")
		Expect(err).NotTo(HaveOccurred())
		near, err := embedder.Embed(ctx, "sort numbers with quicksort")
		Expect(err).NotTo(HaveOccurred())
		far, err := embedder.Embed(ctx, "reverse linked list pointers")
		Expect(err).NotTo(HaveOccurred())

		Expect(cosine(query, near)).To(BeNumerically(">", cosine(query, far)))
	})

	It("falls back to the default dimension count", func() {
		Expect(hashed.NewEmbedder(0).Dimensions()).To(Equal(hashed.DefaultDimensions))
	})
})

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	den := math.Sqrt(na) * math.Sqrt(nb)
	if den == 0 {
		return 0
	}
	return dot / den
}
