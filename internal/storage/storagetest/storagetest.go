// Package storagetest holds the behaviour every storage.Storer must show,
// as ginkgo specs shared by the backend suites.
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pingwatch/internal/storage"
)

// ItBehavesLikeAStorer registers the shared specs. open is called before each
// spec and must return an empty store; the store is closed after the spec.
func ItBehavesLikeAStorer(open func() storage.Storer) {
	var (
		store storage.Storer
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = nil
		store = open()
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
		}
	})

	It("starts empty", func() {
		results, err := store.ReadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())

		keys, err := store.ListKeys(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(BeEmpty())
	})

	It("answers pings", func() {
		Expect(store.Ping(ctx)).To(Succeed())
	})

	It("returns ErrNotFound for an unknown url", func() {
		_, err := store.Get(ctx, "https://www.google.com")
		Expect(err).To(MatchError(storage.ErrNotFound))
	})

	It("inserts a new record with its measurement", func() {
		ts := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)
		Expect(store.Upsert(ctx, "https://www.google.com", null.FloatFrom(0.25), ts)).To(Succeed())

		r, err := store.Get(ctx, "https://www.google.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.URL).To(Equal("https://www.google.com"))
		Expect(r.ResponseTime.Valid).To(BeTrue())
		Expect(r.ResponseTime.Float64).To(BeNumerically("~", 0.25, 1e-9))
		Expect(r.Timestamp.Equal(ts)).To(BeTrue())
	})

	It("keeps exactly one record per url with the latest values", func() {
		first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		second := first.Add(5 * time.Minute)

		Expect(store.Upsert(ctx, "https://www.google.com", null.FloatFrom(0.5), first)).To(Succeed())
		Expect(store.Upsert(ctx, "https://www.google.com", null.FloatFrom(0.1), second)).To(Succeed())

		results, err := store.ReadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].ResponseTime.Float64).To(BeNumerically("~", 0.1, 1e-9))
		Expect(results[0].Timestamp.Equal(second)).To(BeTrue())
	})

	It("records a failed probe as a null response time", func() {
		first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		Expect(store.Upsert(ctx, "https://www.bing.com", null.FloatFrom(0.3), first)).To(Succeed())
		Expect(store.Upsert(ctx, "https://www.bing.com", null.Float{}, first.Add(time.Minute))).To(Succeed())

		r, err := store.Get(ctx, "https://www.bing.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.ResponseTime.Valid).To(BeFalse())
		Expect(r.Failed()).To(BeTrue())
		Expect(r.Timestamp.Equal(first.Add(time.Minute))).To(BeTrue())
	})

	It("stores timestamps with second precision", func() {
		ts := time.Date(2024, 5, 1, 12, 0, 7, 987654321, time.UTC)
		Expect(store.Upsert(ctx, "https://yahoo.com", null.FloatFrom(1), ts)).To(Succeed())

		r, err := store.Get(ctx, "https://yahoo.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Timestamp.Equal(ts.Truncate(time.Second))).To(BeTrue())
	})

	It("keeps urls exactly as given", func() {
		ts := time.Now()
		Expect(store.Upsert(ctx, "https://www.google.com", null.FloatFrom(1), ts)).To(Succeed())
		Expect(store.Upsert(ctx, "https://www.google.com/", null.FloatFrom(1), ts)).To(Succeed())

		keys, err := store.ListKeys(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(ConsistOf("https://www.google.com", "https://www.google.com/"))
	})

	It("accepts urls longer than 255 characters", func() {
		url := "https://www.google.com/search?q=" + strings.Repeat("a", 400)
		Expect(store.Upsert(ctx, url, null.FloatFrom(0.4), time.Now())).To(Succeed())

		r, err := store.Get(ctx, url)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.URL).To(Equal(url))
	})

	It("lists every key and reads every record", func() {
		ts := time.Now()
		for i := 0; i < 5; i++ {
			url := fmt.Sprintf("https://host%d.google.com", i)
			Expect(store.Upsert(ctx, url, null.FloatFrom(float64(i)), ts)).To(Succeed())
		}

		keys, err := store.ListKeys(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(HaveLen(5))
		Expect(keys).To(ContainElement("https://host3.google.com"))

		results, err := store.ReadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(5))
	})

	It("never duplicates a url under concurrent upserts", func() {
		const writers = 16
		base := time.Now()

		var wg sync.WaitGroup
		errs := make(chan error, writers*2)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Upsert(ctx, "https://www.google.com", null.FloatFrom(float64(i)), base.Add(time.Duration(i)*time.Second))
				errs <- store.Upsert(ctx, fmt.Sprintf("https://w%d.bing.com", i), null.Float{}, base)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}

		keys, err := store.ListKeys(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(HaveLen(writers + 1))

		r, err := store.Get(ctx, "https://www.google.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.ResponseTime.Valid).To(BeTrue())
		// Both fields come from the same write.
		i := int(r.ResponseTime.Float64)
		Expect(r.Timestamp.Equal(base.Add(time.Duration(i) * time.Second).Truncate(time.Second))).To(BeTrue())
	})
}
