// Copyright (c) 2025 Quantfeed Corp

package core_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dfh "github.com/quantfeed/dfh-go"
	"github.com/quantfeed/dfh-go/core"
)

///////////////////////////////////////////////////////////////////////////////

// stubSource serves canned hour ticks for a 1x1 (symbol, provider) space.
type stubSource struct {
	hours map[uint64][]dfh.MarketTick
}

func (s *stubSource) FetchTicks(symbolID, providerID uint16, startTs, endTs uint64) ([]dfh.MarketTick, dfh.TickCodecConfig, error) {
	config := dfh.TickCodecConfig{PriceDigits: 2, Flags: dfh.TickCodec_TradeBased}
	ticks := append([]dfh.MarketTick(nil), s.hours[startTs]...)
	return ticks, config, nil
}

func (s *stubSource) SymbolCount() int   { return 1 }
func (s *stubSource) ProviderCount() int { return 1 }

///////////////////////////////////////////////////////////////////////////////

// recordingListener captures the delivered snapshot times and flags.
type recordingListener struct {
	name   string
	events []string
	times  []uint64
	fail   bool
}

func (l *recordingListener) OnUpdate(snapshot *core.MarketSnapshot) error {
	kind := "update"
	if snapshot.HasFlag(core.Event_Start) {
		kind = "start"
	}
	l.events = append(l.events, fmt.Sprintf("%s@%d", kind, snapshot.TimeMs()))
	if !snapshot.HasFlag(core.Event_Start) {
		l.times = append(l.times, snapshot.TimeMs())
	}
	if l.fail {
		return fmt.Errorf("listener %s failed", l.name)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

var _ = Describe("MarketDataBus", func() {
	newBus := func() *core.MarketDataBus {
		return core.NewMarketDataBus(&stubSource{hours: map[uint64][]dfh.MarketTick{}})
	}

	Context("registration", func() {
		It("should reuse the lowest disabled slot", func() {
			bus := newBus()
			a, b, c := &recordingListener{name: "a"}, &recordingListener{name: "b"}, &recordingListener{name: "c"}
			idA, err := bus.Register(a)
			Expect(err).To(BeNil())
			Expect(idA).To(Equal(0))
			idB, _ := bus.Register(b)
			Expect(idB).To(Equal(1))

			Expect(bus.Unregister(a)).To(BeTrue())
			idC, _ := bus.Register(c)
			Expect(idC).To(Equal(0))
		})

		It("should reject double registration and enforce the cap", func() {
			bus := newBus()
			a := &recordingListener{name: "a"}
			_, err := bus.Register(a)
			Expect(err).To(BeNil())
			_, err = bus.Register(a)
			Expect(err).ToNot(BeNil())

			for i := 1; i < core.MaxSubscribers; i++ {
				_, err = bus.Register(&recordingListener{name: fmt.Sprintf("l%d", i)})
				Expect(err).To(BeNil())
			}
			_, err = bus.Register(&recordingListener{name: "overflow"})
			Expect(err).To(MatchError(dfh.ErrTooManySubscribers))
		})
	})

	Context("timer coalescing", func() {
		It("should fire 1s and 3s listeners per the scenario", func() {
			bus := newBus()
			a := &recordingListener{name: "a"}
			b := &recordingListener{name: "b"}
			idA, _ := bus.Register(a)
			idB, _ := bus.Register(b)
			Expect(bus.SubscribeTimer(idA, 1000)).To(BeTrue())
			Expect(bus.SubscribeTimer(idB, 3000)).To(BeTrue())
			Expect(bus.SubscribeTicks(idA, 0, 0)).To(BeTrue())
			Expect(bus.SubscribeTicks(idB, 0, 0)).To(BeTrue())

			bus.Start(0)
			Expect(a.events[0]).To(Equal("start@0"))
			Expect(b.events[0]).To(Equal("start@0"))

			Expect(bus.Update(3000)).To(Succeed())
			Expect(a.times).To(Equal([]uint64{1000, 2000, 3000}))
			Expect(b.times).To(Equal([]uint64{3000}))
		})

		It("should fire single steps when updates arrive every period", func() {
			bus := newBus()
			a := &recordingListener{name: "a"}
			idA, _ := bus.Register(a)
			bus.SubscribeTimer(idA, 1000)

			bus.Start(0)
			for t := uint64(1000); t <= 5000; t += 1000 {
				Expect(bus.Update(t)).To(Succeed())
			}
			Expect(a.times).To(Equal([]uint64{1000, 2000, 3000, 4000, 5000}))
		})

		It("should deliver snapshots in monotone time across calls", func() {
			bus := newBus()
			a := &recordingListener{name: "a"}
			idA, _ := bus.Register(a)
			bus.SubscribeTimer(idA, 700)

			bus.Start(0)
			Expect(bus.Update(2500)).To(Succeed())
			Expect(bus.Update(2600)).To(Succeed())
			Expect(bus.Update(5000)).To(Succeed())
			for i := 1; i < len(a.times); i++ {
				Expect(a.times[i]).To(BeNumerically(">", a.times[i-1]))
			}
		})
	})

	Context("determinism", func() {
		It("identical subscription state and update times should produce identical sequences", func() {
			run := func() ([]string, []string) {
				bus := newBus()
				a := &recordingListener{name: "a"}
				b := &recordingListener{name: "b"}
				idA, _ := bus.Register(a)
				idB, _ := bus.Register(b)
				bus.SubscribeTimer(idA, 1000)
				bus.SubscribeTimer(idB, 2000)
				bus.SubscribeTicks(idA, 0, 0)
				bus.SubscribeTicks(idB, 0, 0)
				bus.Start(0)
				for _, t := range []uint64{1500, 4000, 4100, 9000} {
					Expect(bus.Update(t)).To(Succeed())
				}
				return a.events, b.events
			}
			a1, b1 := run()
			a2, b2 := run()
			Expect(a1).To(Equal(a2))
			Expect(b1).To(Equal(b2))
		})
	})

	Context("listener errors", func() {
		It("a raising listener should not abort the remaining listeners", func() {
			bus := newBus()
			bad := &recordingListener{name: "bad", fail: true}
			good := &recordingListener{name: "good"}
			idBad, _ := bus.Register(bad)
			idGood, _ := bus.Register(good)
			bus.SubscribeTimer(idBad, 1000)
			bus.SubscribeTimer(idGood, 1000)

			bus.Start(0)
			Expect(bus.Update(1000)).To(Succeed())
			Expect(bad.times).To(Equal([]uint64{1000}))
			Expect(good.times).To(Equal([]uint64{1000}))
		})
	})

	Context("handles", func() {
		It("closing a handle should unregister its listener", func() {
			bus := newBus()
			a := &recordingListener{name: "a"}
			handle, err := core.NewListenerHandle(bus, a)
			Expect(err).To(BeNil())
			bus.SubscribeTimer(handle.ID(), 1000)
			handle.Close()
			handle.Close() // idempotent

			bus.Start(0)
			Expect(bus.Update(1000)).To(Succeed())
			Expect(a.times).To(BeEmpty())
		})
	})
})
