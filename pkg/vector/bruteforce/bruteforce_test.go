package bruteforce_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipstash/snipstash/pkg/vector"
	"github.com/snipstash/snipstash/pkg/vector/bruteforce"
)

func TestBruteforce(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Bruteforce Suite")
}

var _ = Describe("Ranker", func() {
	var ranker *bruteforce.Ranker

	BeforeEach(func() {
		ranker = bruteforce.NewRanker()
	})

	It("ranks the closest candidate first", func() {
		query := []float32{1, 0}
		candidates := []vector.Candidate{
			{ID: 1, Embedding: []float32{0, 1}},
			{ID: 2, Embedding: []float32{1, 0.1}},
			{ID: 3, Embedding: []float32{-1, 0}},
		}

		matches := ranker.Rank(query, candidates, 3)
		Expect(matches).To(HaveLen(3))
		Expect(matches[0].ID).To(Equal(int64(2)))
		Expect(matches[1].ID).To(Equal(int64(1)))
		Expect(matches[2].ID).To(Equal(int64(3)))
	})

	It("returns scores within [-1, 1] and non-increasing", func() {
		query := []float32{0.3, 0.7, -0.2}
		candidates := []vector.Candidate{
			{ID: 1, Embedding: []float32{0.3, 0.7, -0.2}},
			{ID: 2, Embedding: []float32{-0.3, -0.7, 0.2}},
			{ID: 3, Embedding: []float32{1, 1, 1}},
		}

		matches := ranker.Rank(query, candidates, 3)
		Expect(matches).To(HaveLen(3))
		for i, m := range matches {
			Expect(m.Score).To(BeNumerically(">=", -1.0001))
			Expect(m.Score).To(BeNumerically("<=", 1.0001))
			if i > 0 {
				Expect(m.Score).To(BeNumerically("<=", matches[i-1].Score))
			}
		}
		Expect(matches[0].Score).To(BeNumerically("~", 1.0, 1e-5))
	})

	It("breaks score ties by lower ID first", func() {
		query := []float32{1, 0}
		candidates := []vector.Candidate{
			{ID: 9, Embedding: []float32{2, 0}},
			{ID: 3, Embedding: []float32{5, 0}},
			{ID: 7, Embedding: []float32{1, 0}},
		}

		matches := ranker.Rank(query, candidates, 3)
		Expect(matches).To(HaveLen(3))
		Expect(matches[0].ID).To(Equal(int64(3)))
		Expect(matches[1].ID).To(Equal(int64(7)))
		Expect(matches[2].ID).To(Equal(int64(9)))
	})

	It("truncates to k results", func() {
		query := []float32{1, 0}
		candidates := []vector.Candidate{
			{ID: 1, Embedding: []float32{1, 0}},
			{ID: 2, Embedding: []float32{0.9, 0.1}},
			{ID: 3, Embedding: []float32{0.8, 0.2}},
		}

		Expect(ranker.Rank(query, candidates, 2)).To(HaveLen(2))
	})

	It("returns nothing for k <= 0", func() {
		candidates := []vector.Candidate{{ID: 1, Embedding: []float32{1, 0}}}
		Expect(ranker.Rank([]float32{1, 0}, candidates, 0)).To(BeEmpty())
		Expect(ranker.Rank([]float32{1, 0}, candidates, -5)).To(BeEmpty())
	})

	It("returns nothing for an empty candidate set", func() {
		Expect(ranker.Rank([]float32{1, 0}, nil, 10)).To(BeEmpty())
	})

	It("excludes zero-norm candidates instead of dividing by zero", func() {
		query := []float32{1, 0}
		candidates := []vector.Candidate{
			{ID: 1, Embedding: []float32{0, 0}},
			{ID: 2, Embedding: []float32{1, 0}},
		}

		matches := ranker.Rank(query, candidates, 10)
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].ID).To(Equal(int64(2)))
	})

	It("skips candidates with a different dimension", func() {
		query := []float32{1, 0}
		candidates := []vector.Candidate{
			{ID: 1, Embedding: []float32{1, 0, 0}},
			{ID: 2, Embedding: []float32{1, 0}},
		}

		matches := ranker.Rank(query, candidates, 10)
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].ID).To(Equal(int64(2)))
	})

	It("returns nothing for a zero-norm query", func() {
		candidates := []vector.Candidate{{ID: 1, Embedding: []float32{1, 0}}}
		Expect(ranker.Rank([]float32{0, 0}, candidates, 10)).To(BeEmpty())
	})
})
