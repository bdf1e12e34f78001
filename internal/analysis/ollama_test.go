package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		ollama   *Ollama
		result   *Result
		err      error
		received ollamaChatRequest
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		ollama, newErr = NewOllama(server.URL()+"/", "llava")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		result, err = ollama.Analyze(context.Background(), []byte("jpeg bytes"), "image/jpeg")
	})

	captureRequest := func(w http.ResponseWriter, r *http.Request) {
		body, readErr := io.ReadAll(r.Body)
		Expect(readErr).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, &received)).To(Succeed())
	}

	When("Ollama answers with valid JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				captureRequest,
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{
						Role:    "assistant",
						Content: `{"name": "Red Hoodie", "description": "Size M", "category": "Clothing", "tags": ["red", "hoodie"], "isLikelyAI": false}`,
					},
					Done: true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the result", func() {
			Expect(result.Name).To(Equal("Red Hoodie"))
			Expect(result.Tags).To(Equal([]string{"red", "hoodie"}))
		})

		It("should attach the image to the user message", func() {
			Expect(received.Messages).To(HaveLen(2))
			Expect(received.Messages[1].Images).To(Equal([]string{base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))}))
		})

		It("should request structured output", func() {
			Expect(received.Model).To(Equal("llava"))
			Expect(received.Stream).To(BeFalse())
			Expect(string(received.Format)).To(ContainSubstring(`"isLikelyAI"`))
		})
	})

	When("Ollama returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("Ollama answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I see a bottle."},
				Done:    true,
			}))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing analysis")))
		})
	})
})

var _ = Describe("Gemini", func() {
	It("requires an API key", func() {
		_, err := NewGemini("", "")
		Expect(err).To(MatchError(ErrMissingCredential))
	})

	It("requires the canonical fields in its response schema", func() {
		Expect(analysisSchema.Required).To(ConsistOf("name", "description", "category", "tags", "isLikelyAI"))
		Expect(analysisSchema.Properties).To(HaveKey("suggestedLocation"))
	})
})
