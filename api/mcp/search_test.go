package mcp

import (
	"context"
	"encoding/json"
	"image/color"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/ingest"
	snapslogger "github.com/papercomputeco/snaps/pkg/logger"
	testutils "github.com/papercomputeco/snaps/pkg/utils/test"
)

var _ = Describe("search_images tool", func() {
	var (
		ctx     context.Context
		session *mcp.ClientSession
		hallID  string
	)

	BeforeEach(func() {
		ctx = context.Background()

		records := testutils.NewMockStorageDriver()
		vectors := testutils.NewMockVectorDriver(8)
		embedder := testutils.NewMockEmbedder(8)
		blobs := testutils.NewMemoryBlobStore()

		ingester, err := ingest.NewIngester(&ingest.Config{
			Storage:      records,
			VectorDriver: vectors,
			Embedder:     embedder,
			Blobs:        blobs,
		})
		Expect(err).NotTo(HaveOccurred())

		res, err := ingester.Ingest(ctx, ingest.Upload{
			Data:     testutils.PNG(color.RGBA{R: 255, A: 255}),
			Building: "Hall",
			ShotDate: "2023-07-12",
		})
		Expect(err).NotTo(HaveOccurred())
		hallID = res.ID

		_, err = ingester.Ingest(ctx, ingest.Upload{
			Data:     testutils.PNG(color.RGBA{B: 255, A: 255}),
			Building: "Library",
			ShotDate: "2023-07-14",
		})
		Expect(err).NotTo(HaveOccurred())

		searcher, err := search.NewSearcher(&search.Config{
			Embedder:     embedder,
			VectorDriver: vectors,
			Storage:      records,
			Blobs:        blobs,
		})
		Expect(err).NotTo(HaveOccurred())

		server, err := NewServer(Config{Searcher: searcher, Logger: snapslogger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		serverTransport, clientTransport := mcp.NewInMemoryTransports()
		serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(serverSession.Close)

		client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
		session, err = client.Connect(ctx, clientTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(session.Close)
	})

	call := func(args map[string]any) *mcp.CallToolResult {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      searchToolName,
			Arguments: args,
		})
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	decode := func(res *mcp.CallToolResult) search.Output {
		Expect(res.Content).NotTo(BeEmpty())
		text, ok := res.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())

		var out search.Output
		Expect(json.Unmarshal([]byte(text.Text), &out)).To(Succeed())
		return out
	}

	It("is listed by the server", func() {
		tools, err := session.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(tools.Tools).To(HaveLen(1))
		Expect(tools.Tools[0].Name).To(Equal("search_images"))
	})

	It("returns filtered results as JSON text and structured content", func() {
		res := call(map[string]any{"q": "facade", "building": "Hall", "k": 5})
		Expect(res.IsError).To(BeFalse())
		Expect(res.StructuredContent).NotTo(BeNil())

		out := decode(res)
		Expect(out.Count).To(Equal(1))
		Expect(out.Results[0].ID).To(Equal(hallID))
		Expect(out.Results[0].Building).To(Equal("Hall"))
	})

	It("searches by reference image", func() {
		out := decode(call(map[string]any{"query_image_id": hallID}))
		Expect(out.Results).NotTo(BeEmpty())
		Expect(out.Results[0].ID).To(Equal(hallID))
	})

	It("reports invalid input as a tool error", func() {
		res := call(map[string]any{"building": "Hall"})
		Expect(res.IsError).To(BeTrue())

		text, ok := res.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		Expect(text.Text).To(ContainSubstring("provide q or query_image_id"))
	})
})
