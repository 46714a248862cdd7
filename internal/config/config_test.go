package config_test

import (
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/veloclub/sortie/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8090")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.DefaultGroup, convey.ShouldEqual, "Route")
			convey.So(cfg.DefaultMeetingTime, convey.ShouldEqual, "08:30")
			convey.So(cfg.WriteDelayMS, convey.ShouldEqual, 250)
			convey.So(cfg.WriterCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 10_000)
		})
	})
}
