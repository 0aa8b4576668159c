package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/snaps/cmd/snaps/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))

		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	// run executes the config command against tmpDir/.snaps.
	run := func(args ...string) error {
		root := &cobra.Command{Use: "snaps"}
		root.PersistentFlags().String("config-dir", filepath.Join(tmpDir, ".snaps"), "")
		root.AddCommand(configcmder.NewConfigCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"config"}, args...))
		return root.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "snaps-config-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })
		out = &bytes.Buffer{}
	})

	Describe("set", func() {
		It("writes config.toml", func() {
			Expect(run("set", "vector_store.provider", "qdrant")).To(Succeed())
			Expect(filepath.Join(tmpDir, ".snaps", "config.toml")).To(BeARegularFile())
			Expect(out.String()).To(ContainSubstring("vector_store.provider"))
		})

		It("masks secrets in its output", func() {
			Expect(run("set", "blob.secret_key", "hunter2")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("hunter2"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "proxy.provider", "x")).NotTo(Succeed())
		})

		It("rejects invalid values", func() {
			Expect(run("set", "embedding.dimensions", "not-a-number")).NotTo(Succeed())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "vector_store.provider")).NotTo(Succeed())
		})
	})

	Describe("get", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "api.listen", ":9000")).To(Succeed())
			out.Reset()

			Expect(run("get", "api.listen")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(":9000"))
		})

		It("prints defaults for unset keys", func() {
			Expect(run("get", "vector_store.collection")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("images"))
		})

		It("reports where the value comes from", func() {
			Expect(run("get", "vector_store.collection")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("(default)"))

			Expect(run("set", "vector_store.collection", "site_photos")).To(Succeed())
			out.Reset()
			Expect(run("get", "vector_store.collection")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("site_photos"))
			Expect(out.String()).To(ContainSubstring("(config.toml)"))

			GinkgoT().Setenv("SNAPS_VECTOR_STORE_COLLECTION", "from_env")
			out.Reset()
			Expect(run("get", "vector_store.collection")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("from_env"))
			Expect(out.String()).To(ContainSubstring("(env)"))
		})

		It("masks secrets unless revealed", func() {
			Expect(run("set", "blob.secret_key", "hunter2")).To(Succeed())
			out.Reset()
			Expect(run("get", "blob.secret_key")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("hunter2"))

			out.Reset()
			Expect(run("get", "blob.secret_key", "--reveal")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("hunter2"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "nope")).NotTo(Succeed())
		})
	})

	Describe("list", func() {
		It("lists every key and masks secrets", func() {
			Expect(run("set", "cache.redis_password", "s3cret")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("storage.provider"))
			Expect(out.String()).To(ContainSubstring("events.topic"))
			Expect(out.String()).To(ContainSubstring("cache.redis_password"))
			Expect(out.String()).NotTo(ContainSubstring("s3cret"))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).NotTo(Succeed())
		})
	})
})
