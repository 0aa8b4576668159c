package infinity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/pkg/embeddings/infinity"
	"github.com/papercomputeco/snaps/pkg/vector"
)

type captured struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Modality string   `json:"modality"`
	Auth     string
}

var _ = Describe("Embedder", func() {
	var (
		server *httptest.Server
		last   captured
		status int
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/embeddings"))
			Expect(json.NewDecoder(r.Body).Decode(&last)).To(Succeed())
			last.Auth = r.Header.Get("Authorization")

			if status != http.StatusOK {
				http.Error(w, "boom", status)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"embedding": []float32{0.1, 0.2}, "index": 0}},
			})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends text with the text modality", func() {
		e, err := infinity.NewEmbedder(infinity.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		v, err := e.Embed(ctx, "excavator")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float32{0.1, 0.2}))
		Expect(last.Modality).To(Equal("text"))
		Expect(last.Input).To(Equal([]string{"excavator"}))
		Expect(last.Model).To(Equal(infinity.DefaultModel))
		Expect(last.Auth).To(BeEmpty())
	})

	It("sends images as data URIs with the image modality", func() {
		e, err := infinity.NewEmbedder(infinity.EmbedderConfig{BaseURL: server.URL + "/", APIKey: "secret"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.EmbedImage(ctx, []byte("\x89PNG\r\n\x1a\nrest"))
		Expect(err).NotTo(HaveOccurred())
		Expect(last.Modality).To(Equal("image"))
		Expect(last.Input[0]).To(HavePrefix("data:image/png;base64,"))
		Expect(last.Auth).To(Equal("Bearer secret"))
	})

	It("wraps server errors as embedding errors", func() {
		status = http.StatusInternalServerError
		e, err := infinity.NewEmbedder(infinity.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(ctx, "crane")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("status 500"))
	})
})
