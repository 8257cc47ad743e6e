package loader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing/fstest"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chattriggers/ctjs/internal/loader"
	"github.com/chattriggers/ctjs/pkg/aggregator"
	"github.com/chattriggers/ctjs/pkg/config"
	"github.com/chattriggers/ctjs/pkg/mocks"
	"github.com/chattriggers/ctjs/pkg/resources"
	"github.com/chattriggers/ctjs/pkg/scripting"
	"github.com/chattriggers/ctjs/pkg/types"
)

func writeScript(path, content string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
}

var _ = Describe("Loader", func() {
	var (
		modRoot  string
		paths    config.Paths
		agg      *aggregator.Aggregator
		registry *mocks.MockRegistry
		store    *mocks.MockStateStore
		notify   *mocks.MockNotifier
		deps     loader.Dependencies
	)

	importFile := func(name, file string) string {
		return filepath.Join(paths.Imports, name, file)
	}

	BeforeEach(func() {
		var err error
		modRoot, err = os.MkdirTemp("", "ctjs-loader-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, modRoot)

		manager := config.NewManager()
		cfg := manager.GetDefaultConfig()
		cfg.ModRoot = modRoot
		paths = manager.ResolvePaths(cfg)

		agg, err = aggregator.New(aggregator.Options{CacheSize: 16})
		Expect(err).NotTo(HaveOccurred())

		registry = mocks.NewMockRegistry()
		store = mocks.NewMockStateStore()
		notify = mocks.NewMockNotifier()

		deps = loader.Dependencies{
			Paths:         paths,
			Aggregator:    agg,
			EngineFactory: scripting.NewGojaFactory(nil, 0),
			Registry:      registry,
			State:         store,
			Notifier:      notify,
		}
	})

	newLoader := func() *loader.Loader {
		l, err := loader.New(deps)
		Expect(err).NotTo(HaveOccurred())
		return l
	}

	Describe("New", func() {
		It("requires an aggregator and an engine factory", func() {
			_, err := loader.New(loader.Dependencies{EngineFactory: deps.EngineFactory})
			Expect(err).To(HaveOccurred())

			_, err = loader.New(loader.Dependencies{Aggregator: agg})
			Expect(err).To(HaveOccurred())
		})

		It("surfaces engine factory failures", func() {
			deps.EngineFactory = func() (scripting.Engine, error) {
				return nil, errors.New("no runtime")
			}
			_, err := loader.New(deps)
			Expect(err).To(MatchError(ContainSubstring("no runtime")))
		})
	})

	Describe("Load", func() {
		It("aggregates each import directory into one script", func() {
			writeScript(importFile("foo", "a.js"), "print(1)\n")
			writeScript(importFile("foo", "b.js"), "print(2)\n")

			l := newLoader()
			report := l.Load(context.Background())

			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(l.Imports()).To(HaveLen(1))
			Expect(l.Imports()[0].Name).To(Equal("foo"))
			Expect(l.Imports()[0].Script).To(Equal("print(1)\nprint(2)\n"))
			Expect(report.Evaluated).To(Equal([]string{
				types.DefaultProvidedLibs,
				types.DefaultCustomLibs,
				"foo",
			}))
		})

		It("drops illegal lines before evaluation", func() {
			writeScript(importFile("net", "main.js"),
				"var ok = 1;\nload(\"https://example.com/x.js\");\nmodule.exports = ok;\n")

			l := newLoader()
			l.Load(context.Background())

			Expect(l.Imports()[0].Script).To(Equal("var ok = 1;\n"))
		})

		It("materializes provided libs every time and custom libs once", func() {
			l := newLoader()
			l.Load(context.Background())

			Expect(paths.ProvidedLibsFile).To(BeARegularFile())
			Expect(paths.CustomLibsFile).To(BeARegularFile())

			writeScript(paths.ProvidedLibsFile, "tampered()\n")
			writeScript(paths.CustomLibsFile, "function mine() { return 'kept'; }\n")

			l.Load(context.Background())

			provided, _ := os.ReadFile(paths.ProvidedLibsFile)
			Expect(string(provided)).To(ContainSubstring("updateProvidedLibsTick"))
			custom, _ := os.ReadFile(paths.CustomLibsFile)
			Expect(string(custom)).To(Equal("function mine() { return 'kept'; }\n"))

			Expect(l.Dispatch(types.CallTrigger{Function: "mine"})).To(Equal("kept"))
		})

		It("keeps evaluating after a failing import", func() {
			writeScript(importFile("bad", "x.js"), "throw new Error('broken import');\n")
			writeScript(importFile("good", "y.js"), "function good() { return true; }\n")

			l := newLoader()
			report := l.Load(context.Background())

			failures := report.FailuresAt(types.StageEvaluate)
			Expect(failures).To(HaveLen(1))
			Expect(failures[0].Subject).To(Equal("bad"))
			Expect(errors.Is(failures[0], types.ErrScriptEval)).To(BeTrue())
			Expect(report.Evaluated).To(ContainElement("good"))

			Expect(l.Dispatch(types.CallTrigger{Function: "good"})).To(BeTrue())
			Expect(notify.ScriptFailures).To(HaveLen(1))
			Expect(notify.LastFailures).To(Equal(1))
		})

		It("records missing resources and continues", func() {
			deps.Materializer = resources.NewMaterializer(fstest.MapFS{}, nil)
			writeScript(importFile("foo", "a.js"), "var a = 1;\n")

			l := newLoader()
			report := l.Load(context.Background())

			failures := report.FailuresAt(types.StageMaterialize)
			Expect(failures).To(HaveLen(2))
			for _, f := range failures {
				Expect(errors.Is(f, types.ErrResourceMissing)).To(BeTrue())
			}
			Expect(l.Imports()).To(HaveLen(1))
			Expect(report.Evaluated).To(ContainElement("foo"))
		})

		It("copies import assets into the assets directory", func() {
			writeScript(importFile("icons", filepath.Join("assets", "logo.png")), "png")
			writeScript(importFile("icons", "main.js"), "var icons = 1;\n")

			report := newLoader().Load(context.Background())

			Expect(report.Assets).To(ConsistOf(filepath.Join(paths.Assets, "logo.png")))
			Expect(filepath.Join(paths.Assets, "logo.png")).To(BeARegularFile())
		})

		It("registers with the host exactly once", func() {
			l := newLoader()
			l.Load(context.Background())
			l.Load(context.Background())

			Expect(registry.Listeners()).To(HaveLen(1))
		})

		It("persists the load outcome", func() {
			writeScript(importFile("foo", "a.js"), "print(1)\n")

			report := newLoader().Load(context.Background())

			saved := store.Last()
			Expect(saved).NotTo(BeNil())
			Expect(saved.LoadID).To(Equal(report.LoadID))
			Expect(saved.LoadID).To(HavePrefix("load_"))
			Expect(saved.Imports).To(HaveLen(1))
			Expect(saved.EntryPoints).To(HaveLen(types.EntryPointCount))
		})

		It("gives every load its own id", func() {
			l := newLoader()
			first := l.Load(context.Background())
			second := l.Load(context.Background())

			Expect(first.LoadID).NotTo(Equal(second.LoadID))
			Expect(l.LastReport()).To(BeIdenticalTo(second))
		})

		It("stops between steps when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			report := newLoader().Load(ctx)

			Expect(report.Failures).To(HaveLen(1))
			Expect(errors.Is(report.Failures[0], context.Canceled)).To(BeTrue())
			Expect(registry.Listeners()).To(BeEmpty())
		})

		It("evaluates provided libs, custom libs, then imports", func() {
			ctrl := gomock.NewController(GinkgoT())
			engine := mocks.NewMockEngine(ctrl)
			deps.EngineFactory = func() (scripting.Engine, error) { return engine, nil }

			writeScript(importFile("a", "a.js"), "a()\n")
			writeScript(importFile("b", "b.js"), "b()\n")

			gomock.InOrder(
				engine.EXPECT().Evaluate(types.DefaultProvidedLibs, gomock.Any()).Return(nil),
				engine.EXPECT().Evaluate(types.DefaultCustomLibs, gomock.Any()).Return(errors.New("custom broke")),
				engine.EXPECT().Evaluate("a", "a()\n").Return(nil),
				engine.EXPECT().Evaluate("b", "b()\n").Return(nil),
			)

			report := newLoader().Load(context.Background())
			Expect(report.FailuresAt(types.StageEvaluate)).To(HaveLen(1))
		})
	})

	Describe("lifecycle dispatch", func() {
		BeforeEach(func() {
			writeScript(importFile("counter", "main.js"),
				"var ticks = 0; var worlds = 0;\n"+
					"registerTick(function () { ticks++; });\n"+
					"registerWorldLoad(function () { worlds++; });\n"+
					"function counts() { return ticks + ':' + worlds; }\n")
		})

		It("runs registered triggers and disables missing custom hooks", func() {
			l := newLoader()
			l.Load(context.Background())

			registry.FireTick()
			registry.FireTick()
			registry.FireTick()
			registry.FireWorldLoad()

			Expect(l.Dispatch(types.CallTrigger{Function: "counts"})).To(Equal("3:1"))

			states := l.EntryStates()
			Expect(states["updateProvidedLibsTick"]).To(Equal(types.EntryStateEnabled))
			Expect(states["updateProvidedLibsWorld"]).To(Equal(types.EntryStateEnabled))
			Expect(states["updateCustomLibsTick"]).To(Equal(types.EntryStateDisabled))
			Expect(states["updateCustomLibsWorld"]).To(Equal(types.EntryStateDisabled))

			Expect(notify.Disabled).To(ConsistOf(types.CustomLibsTick, types.CustomLibsWorld))
			s, ok := store.EntryState(types.CustomLibsTick)
			Expect(ok).To(BeTrue())
			Expect(s).To(Equal(types.EntryStateDisabled))
		})

		It("calls custom hooks when the custom libs define them", func() {
			writeScript(paths.CustomLibsFile,
				"var customTicks = 0;\nfunction updateCustomLibsTick() { customTicks++; }\n"+
					"function customCount() { return customTicks; }\n")

			l := newLoader()
			l.Load(context.Background())
			l.OnTick()
			l.OnTick()

			Expect(l.Dispatch(types.CallTrigger{Function: "customCount"})).To(Equal(int64(2)))
			Expect(l.EntryStates()["updateCustomLibsTick"]).To(Equal(types.EntryStateEnabled))
		})

		It("re-enables entry points and rereads imports on reload", func() {
			l := newLoader()
			l.Load(context.Background())
			l.OnTick()
			Expect(l.EntryStates()["updateCustomLibsTick"]).To(Equal(types.EntryStateDisabled))

			writeScript(importFile("late", "late.js"), "function late() { return 'here'; }\n")

			report, err := l.Reload(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(report.OK()).To(BeTrue())

			for _, s := range l.EntryStates() {
				Expect(s).To(Equal(types.EntryStateEnabled))
			}
			Expect(l.Imports()).To(HaveLen(2))
			Expect(l.Dispatch(types.CallTrigger{Function: "late"})).To(Equal("here"))
			Expect(l.Dispatch(types.CallTrigger{Function: "counts"})).To(Equal("0:0"))
			Expect(registry.Listeners()).To(HaveLen(1))
		})
	})
})
