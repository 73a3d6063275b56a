package snippet_test

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipstash/snipstash/pkg/snippet"
)

func TestSnippet(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Snippet Suite")
}

var _ = Describe("Fields validation", func() {
	var fields snippet.Fields

	BeforeEach(func() {
		fields = snippet.Fields{
			Title:    "quicksort",
			Code:     "func quicksort(a []int) {}",
			Language: "go",
		}
	})

	It("accepts a minimal valid snippet", func() {
		Expect(fields.Validate()).To(Succeed())
	})

	It("rejects a missing title", func() {
		fields.Title = "   "
		err := fields.Validate()
		Expect(err).To(MatchError(snippet.ErrValidation))
		Expect(err.Error()).To(ContainSubstring("title"))
	})

	It("rejects missing code", func() {
		fields.Code = ""
		Expect(fields.Validate()).To(MatchError(snippet.ErrValidation))
	})

	It("rejects a missing language", func() {
		fields.Language = ""
		Expect(fields.Validate()).To(MatchError(snippet.ErrValidation))
	})

	It("rejects fields containing the source separator", func() {
		fields.Description = "sneaky" + snippet.SourceSeparator + "bleed"
		err := fields.Validate()
		Expect(err).To(MatchError(snippet.ErrValidation))
		Expect(err.Error()).To(ContainSubstring("separator"))
	})
})

var _ = Describe("Update", func() {
	It("rejects blanking out required fields", func() {
		empty := ""
		u := snippet.Update{Title: &empty}
		Expect(u.Validate()).To(MatchError(snippet.ErrValidation))
	})

	It("accepts clearing the description", func() {
		empty := ""
		u := snippet.Update{Description: &empty}
		Expect(u.Validate()).To(Succeed())
	})

	It("reports source-touching fields", func() {
		code := "x := 1"
		lang := "go"
		Expect(snippet.Update{Code: &code}.TouchesSource()).To(BeTrue())
		Expect(snippet.Update{Language: &lang}.TouchesSource()).To(BeFalse())
		Expect(snippet.Update{}.TouchesSource()).To(BeFalse())
	})

	It("applies only the provided fields", func() {
		s := &snippet.Snippet{
			ID:       42,
			Title:    "old title",
			Code:     "old code",
			Language: "go",
			Tags:     []string{"a"},
		}
		title := "new title"
		tags := []string{"b", "c"}
		out := snippet.Update{Title: &title, Tags: &tags}.Apply(s)

		Expect(out.ID).To(Equal(int64(42)))
		Expect(out.Title).To(Equal("new title"))
		Expect(out.Code).To(Equal("old code"))
		Expect(out.Tags).To(Equal([]string{"b", "c"}))

		// original untouched
		Expect(s.Title).To(Equal("old title"))
		Expect(s.Tags).To(Equal([]string{"a"}))
	})
})

var _ = Describe("EmbeddingText", func() {
	It("joins title, description and code in order", func() {
		text := snippet.EmbeddingText("t", "d", "c")
		Expect(text).To(Equal("t" + snippet.SourceSeparator + "d" + snippet.SourceSeparator + "c"))
	})

	It("keeps the separator out of normal text", func() {
		text := snippet.EmbeddingText("reverse list", "", "def reverse(l): ...")
		Expect(strings.Count(text, snippet.SourceSeparator)).To(Equal(2))
	})
})

var _ = Describe("SourceDigest", func() {
	It("is stable for identical text", func() {
		a := &snippet.Snippet{Title: "t", Description: "d", Code: "c"}
		b := &snippet.Snippet{Title: "t", Description: "d", Code: "c"}
		Expect(a.SourceDigest()).To(Equal(b.SourceDigest()))
	})

	It("changes when the code changes", func() {
		a := &snippet.Snippet{Title: "t", Code: "c1"}
		b := &snippet.Snippet{Title: "t", Code: "c2"}
		Expect(a.SourceDigest()).NotTo(Equal(b.SourceDigest()))
	})
})

var _ = Describe("Clone", func() {
	It("deep copies tags and embedding", func() {
		s := &snippet.Snippet{
			Tags:      []string{"go"},
			Embedding: []float32{1, 2, 3},
		}
		c := s.Clone()
		c.Tags[0] = "rust"
		c.Embedding[0] = 9

		Expect(s.Tags[0]).To(Equal("go"))
		Expect(s.Embedding[0]).To(Equal(float32(1)))
	})

	It("reports searchability from the embedding", func() {
		Expect((&snippet.Snippet{}).Searchable()).To(BeFalse())
		Expect((&snippet.Snippet{Embedding: []float32{0.1}}).Searchable()).To(BeTrue())
	})
})
