package submission

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/goleak"

	"github.com/zombor/campusfind/internal/analysis"
	"github.com/zombor/campusfind/internal/item"
)

var (
	sessionKey = Key{ID: "session-1", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	otherKey   = Key{ID: "session-2", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
)

// fakeAnalyzer returns result, optionally waiting for release first
type fakeAnalyzer struct {
	mu      sync.Mutex
	result  analysis.Result
	calls   []string
	started chan struct{}
	release chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, image string) analysis.Result {
	f.mu.Lock()
	f.calls = append(f.calls, image)
	started, release, result := f.started, f.release, f.result
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return result
}

// fakeReporter records reports
type fakeReporter struct {
	reports []item.ReportRequest
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeReporter) Report(req item.ReportRequest) (*item.Item, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	f.reports = append(f.reports, req)
	return &item.Item{
		ID:        "1705312800000",
		CollegeID: req.CollegeID,
		FinderID:  req.FinderID,
		Image:     req.Image,
		Name:      req.Name,
		FoundDate: req.FoundDate,
		Location:  req.Location,
		Status:    item.StatusUnclaimed,
		Tags:      req.Tags,
	}, nil
}

func (f *fakeReporter) Today() string {
	return "2024-01-15"
}

func photo() item.Upload {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return item.Upload{Filename: "umbrella.png", ContentType: "image/png", Data: buf.Bytes()}
}

var _ = ginkgo.Describe("Workflow", func() {
	var (
		analyzer *fakeAnalyzer
		reporter *fakeReporter
		workflow *Workflow
		ignore   goleak.Option
	)

	ginkgo.BeforeEach(func() {
		ignore = goleak.IgnoreCurrent()
		analyzer = &fakeAnalyzer{
			result: analysis.Result{
				Name:              "Umbrella",
				Description:       "Black folding umbrella",
				Category:          "Accessories",
				Tags:              []string{"Black"},
				SuggestedLocation: "Library desk",
			},
		}
		reporter = &fakeReporter{}
		workflow = NewWorkflow(analyzer, reporter)
	})

	ginkgo.AfterEach(func() {
		goleak.VerifyNone(ginkgo.GinkgoT(), ignore)
	})

	ginkgo.Describe("SelectImage", func() {
		ginkgo.It("encodes the image before analysing it", func() {
			form, err := workflow.SelectImage(context.Background(), sessionKey, photo())
			Expect(err).NotTo(HaveOccurred())
			Expect(form.Image).To(HavePrefix("data:image/jpeg;base64,"))
			Expect(analyzer.calls).To(Equal([]string{form.Image}))
		})

		ginkgo.It("pre-fills the draft", func() {
			form, err := workflow.SelectImage(context.Background(), sessionKey, photo())
			Expect(err).NotTo(HaveOccurred())
			Expect(form.State).To(Equal(StateReadyToPublish))
			Expect(form.Name).To(Equal("Umbrella"))
			Expect(form.Location).To(Equal("Library desk"))
			Expect(workflow.Draft(sessionKey).Name).To(Equal("Umbrella"))
		})

		ginkgo.It("rejects an undecodable upload without touching the draft", func() {
			workflow.Edit(sessionKey, Edits{Name: strPtr("Keys")})

			form, err := workflow.SelectImage(context.Background(), sessionKey, item.Upload{
				Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello"),
			})
			Expect(err).To(HaveOccurred())
			Expect(form.Name).To(Equal("Keys"))
			Expect(form.State).To(Equal(StateIdle))
			Expect(analyzer.calls).To(BeEmpty())
		})

		ginkgo.It("keeps drafts of different sessions apart", func() {
			_, err := workflow.SelectImage(context.Background(), sessionKey, photo())
			Expect(err).NotTo(HaveOccurred())
			Expect(workflow.Draft(otherKey).Image).To(BeEmpty())
		})
	})

	ginkgo.When("analysis is still running", func() {
		var (
			done   chan Form
			upload item.Upload
		)

		ginkgo.BeforeEach(func() {
			analyzer.started = make(chan struct{})
			analyzer.release = make(chan struct{})
			done = make(chan Form)
			upload = photo()

			go func() {
				defer ginkgo.GinkgoRecover()
				form, err := workflow.SelectImage(context.Background(), sessionKey, upload)
				Expect(err).NotTo(HaveOccurred())
				done <- form
			}()
			Eventually(analyzer.started).Should(Receive())
		})

		ginkgo.It("shows the draft as analysing", func() {
			Expect(workflow.Draft(sessionKey).State).To(Equal(StateAnalyzing))
			close(analyzer.release)
			Eventually(done).Should(Receive())
		})

		ginkgo.It("refuses to publish", func() {
			_, _, err := workflow.Publish(sessionKey, item.Actor{UserID: "Casey", CollegeID: "MIT"})
			Expect(err).To(MatchError(ErrAnalysisInProgress))
			Expect(reporter.reports).To(BeEmpty())
			close(analyzer.release)
			Eventually(done).Should(Receive())
		})

		ginkgo.It("keeps a location typed meanwhile", func() {
			workflow.Edit(sessionKey, Edits{Location: strPtr("Room 5")})
			close(analyzer.release)

			var form Form
			Eventually(done).Should(Receive(&form))
			Expect(form.Location).To(Equal("Room 5"))
			Expect(form.Name).To(Equal("Umbrella"))
		})

		ginkgo.It("drops the result once the image was cleared", func() {
			workflow.Clear(sessionKey)
			close(analyzer.release)

			var form Form
			Eventually(done).Should(Receive(&form))
			Expect(form.State).To(Equal(StateIdle))
			Expect(form.Name).To(BeEmpty())
			Expect(workflow.Draft(sessionKey).Name).To(BeEmpty())
			Expect(workflow.Draft(sessionKey).Image).To(BeEmpty())
		})

		ginkgo.It("drops the result once the draft was discarded", func() {
			workflow.Discard(sessionKey.ID)
			close(analyzer.release)

			var form Form
			Eventually(done).Should(Receive(&form))
			Expect(form.Name).To(BeEmpty())
			Expect(workflow.Draft(sessionKey).Name).To(BeEmpty())
		})
	})

	ginkgo.Describe("Publish", func() {
		var author item.Actor

		ginkgo.BeforeEach(func() {
			author = item.Actor{UserID: "Casey", CollegeID: "MIT"}
		})

		ginkgo.When("the draft is ready", func() {
			var (
				published *item.Item
				next      Form
				err       error
			)

			ginkgo.BeforeEach(func() {
				_, selectErr := workflow.SelectImage(context.Background(), sessionKey, photo())
				Expect(selectErr).NotTo(HaveOccurred())
				workflow.Edit(sessionKey, Edits{Name: strPtr("  Umbrella  ")})
				published, next, err = workflow.Publish(sessionKey, author)
			})

			ginkgo.It("reports the item for the author", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(published.Status).To(Equal(item.StatusUnclaimed))
				Expect(reporter.reports).To(HaveLen(1))
				req := reporter.reports[0]
				Expect(req.CollegeID).To(Equal("MIT"))
				Expect(req.FinderID).To(Equal("Casey"))
				Expect(req.Name).To(Equal("Umbrella"))
				Expect(req.Location).To(Equal("Library desk"))
				Expect(req.FoundDate).To(Equal("2024-01-15"))
			})

			ginkgo.It("passes the original upload along", func() {
				Expect(reporter.reports[0].Original).NotTo(BeNil())
				Expect(reporter.reports[0].Original.Filename).To(Equal("umbrella.png"))
			})

			ginkgo.It("resets the draft", func() {
				Expect(next.State).To(Equal(StateIdle))
				Expect(workflow.Draft(sessionKey).Image).To(BeEmpty())
			})
		})

		ginkgo.When("there is no image", func() {
			ginkgo.It("stores nothing", func() {
				_, _, err := workflow.Publish(sessionKey, author)
				Expect(err).To(MatchError(ErrNoImage))
				Expect(reporter.reports).To(BeEmpty())
			})
		})

		ginkgo.When("there is no session", func() {
			ginkgo.It("returns ErrNoSession", func() {
				_, _, err := workflow.Publish(sessionKey, item.Actor{})
				Expect(err).To(MatchError(ErrNoSession))
			})
		})

		ginkgo.When("the report fails", func() {
			ginkgo.BeforeEach(func() {
				reporter.err = errors.New("disk full")
			})

			ginkgo.It("keeps the draft", func() {
				_, err := workflow.SelectImage(context.Background(), sessionKey, photo())
				Expect(err).NotTo(HaveOccurred())

				_, form, err := workflow.Publish(sessionKey, author)
				Expect(err).To(MatchError(ContainSubstring("disk full")))
				Expect(form.State).To(Equal(StateReadyToPublish))
				Expect(strings.HasPrefix(workflow.Draft(sessionKey).Image, "data:")).To(BeTrue())
			})
		})
	})

	ginkgo.When("another session is publishing", func() {
		var done chan struct{}

		ginkgo.BeforeEach(func() {
			_, err := workflow.SelectImage(context.Background(), sessionKey, photo())
			Expect(err).NotTo(HaveOccurred())

			reporter.entered = make(chan struct{})
			reporter.release = make(chan struct{})
			done = make(chan struct{})
			go func() {
				defer ginkgo.GinkgoRecover()
				_, _, err := workflow.Publish(sessionKey, item.Actor{UserID: "Casey", CollegeID: "MIT"})
				Expect(err).NotTo(HaveOccurred())
				close(done)
			}()
			Eventually(reporter.entered).Should(Receive())
		})

		ginkgo.AfterEach(func() {
			close(reporter.release)
			Eventually(done).Should(BeClosed())
		})

		ginkgo.It("does not hold up other drafts", func() {
			got := make(chan Form, 1)
			go func() {
				workflow.Edit(otherKey, Edits{Name: strPtr("Scarf")})
				got <- workflow.Draft(otherKey)
			}()

			var form Form
			Eventually(got).Should(Receive(&form))
			Expect(form.Name).To(Equal("Scarf"))
		})
	})

	ginkgo.Describe("expired sessions", func() {
		var clock time.Time

		ginkgo.BeforeEach(func() {
			clock = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
			workflow.now = func() time.Time { return clock }
		})

		ginkgo.It("drops the draft and its upload once the session expires", func() {
			shortLived := Key{ID: "short", ExpiresAt: clock.Add(time.Hour)}
			_, err := workflow.SelectImage(context.Background(), shortLived, photo())
			Expect(err).NotTo(HaveOccurred())
			workflow.Draft(otherKey)
			Expect(workflow.Len()).To(Equal(2))

			clock = clock.Add(2 * time.Hour)
			workflow.Draft(otherKey)
			Expect(workflow.Len()).To(Equal(1))
		})

		ginkgo.It("keeps drafts of live sessions", func() {
			workflow.Edit(otherKey, Edits{Name: strPtr("Scarf")})

			clock = clock.Add(24 * time.Hour)
			Expect(workflow.Draft(otherKey).Name).To(Equal("Scarf"))
		})

		ginkgo.It("starts over when an expired draft is used again", func() {
			shortLived := Key{ID: "short", ExpiresAt: clock.Add(time.Hour)}
			workflow.Edit(shortLived, Edits{Name: strPtr("Scarf")})

			clock = clock.Add(30 * time.Second)
			Expect(workflow.Draft(shortLived).Name).To(Equal("Scarf"))

			clock = clock.Add(2 * time.Hour)
			Expect(workflow.Draft(shortLived).Name).To(BeEmpty())
		})
	})
})
