package urlutil_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pingwatch/internal/urlutil"
)

var _ = Describe("Validator", func() {
	var v *urlutil.Validator

	BeforeEach(func() {
		v = urlutil.NewValidator(urlutil.DefaultAllowedDomains)
	})

	DescribeTable("accepted targets",
		func(candidate string) {
			Expect(v.Validate(candidate)).To(BeTrue())
			Expect(v.Check(candidate)).To(Succeed())
		},
		Entry("bare allowed domain", "https://google.com"),
		Entry("subdomain", "https://www.google.com"),
		Entry("nested subdomain", "http://a.b.youtube.com/watch?v=1"),
		Entry("explicit port", "https://www.bing.com:443/"),
		Entry("uppercase host", "https://WWW.YAHOO.COM"),
		Entry("trailing dot", "https://facebook.com./"),
		Entry("uppercase scheme", "HTTPS://instagram.com"),
	)

	DescribeTable("rejected targets",
		func(candidate string) {
			Expect(v.Validate(candidate)).To(BeFalse())
			Expect(v.Check(candidate)).To(HaveOccurred())
		},
		Entry("empty", ""),
		Entry("ftp scheme", "ftp://google.com"),
		Entry("ftp on unlisted domain", "ftp://example.com"),
		Entry("javascript scheme", "javascript://google.com"),
		Entry("no scheme", "google.com"),
		Entry("unlisted domain", "https://example.com"),
		Entry("suffix without dot boundary", "https://notgoogle.com"),
		Entry("allowed name as label", "https://google.com.evil.net"),
		Entry("missing host", "https://"),
		Entry("unparseable", "http://[::1"),
		Entry("ip address", "http://142.250.74.46"),
	)

	It("normalises allow-list entries", func() {
		v = urlutil.NewValidator([]string{" .Example.ORG ", "", "127.0.0.1"})
		Expect(v.Domains()).To(Equal([]string{"example.org", "127.0.0.1"}))
		Expect(v.Validate("http://api.example.org")).To(BeTrue())
		Expect(v.Validate("http://127.0.0.1:8080/health")).To(BeTrue())
	})

	It("rejects everything with an empty allow-list", func() {
		v = urlutil.NewValidator(nil)
		Expect(v.Validate("https://www.google.com")).To(BeFalse())
	})
})
