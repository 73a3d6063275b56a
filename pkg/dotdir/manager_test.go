package dotdir_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipstash/snipstash/pkg/dotdir"
)

func TestDotdir(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dotdir Suite")
}

var _ = Describe("Manager", func() {
	var m *dotdir.Manager

	BeforeEach(func() {
		m = dotdir.NewManager()
	})

	It("uses the override directory when provided", func() {
		override := filepath.Join(GinkgoT().TempDir(), "custom")

		target, err := m.Target(override)
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(HaveSuffix("custom"))

		info, err := os.Stat(target)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("creates the override directory if missing", func() {
		override := filepath.Join(GinkgoT().TempDir(), "a", "b")

		target, err := m.Target(override)
		Expect(err).NotTo(HaveOccurred())

		_, err = os.Stat(target)
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns an absolute path", func() {
		target, err := m.Target(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.IsAbs(target)).To(BeTrue())
	})
})
