package logger_test

import (
	"bytes"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/logger"
)

var _ = Describe("Logger", func() {
	Describe("NewLoggerWithWriters", func() {
		It("writes messages and fields", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf)
			l.Info("hello", zap.String("key", "value"))

			output := buf.String()
			Expect(output).To(ContainSubstring("hello"))
			Expect(output).To(ContainSubstring("key"))
			Expect(output).To(ContainSubstring("value"))
		})

		It("respects debug level", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(true, &buf)
			l.Debug("debug msg")

			Expect(buf.String()).To(ContainSubstring("debug msg"))
		})

		It("filters debug when not enabled", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf)
			l.Debug("hidden")

			Expect(buf.String()).To(BeEmpty())
		})

		It("fans out to every writer", func() {
			var a, b bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &a, &b)
			l.Warn("both")

			Expect(a.String()).To(ContainSubstring("both"))
			Expect(b.String()).To(ContainSubstring("both"))
		})
	})

	Describe("NewJSONLogger", func() {
		It("emits one JSON object per entry", func() {
			var buf bytes.Buffer
			l := logger.NewJSONLogger(false, &buf)
			l.Info("structured", zap.Int("count", 42))

			line := strings.TrimSpace(buf.String())
			var parsed map[string]any
			Expect(json.Unmarshal([]byte(line), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("structured"))
			Expect(parsed["count"]).To(BeNumerically("==", 42))
			Expect(parsed).To(HaveKey("time"))
		})
	})

	Describe("Nop", func() {
		It("discards everything", func() {
			l := logger.Nop()
			Expect(func() { l.Error("ignored") }).NotTo(Panic())
		})
	})
})
