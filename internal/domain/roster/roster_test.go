package roster_test

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/internal/domain/roster"
)

func TestSnapshotResolveMember(t *testing.T) {
	convey.Convey("Given a snapshot with one known member", t, func() {
		known := []model.Member{
			{ID: "m1", Name: "Alice Martin", Group: "Route", AttendedDates: []string{"2026-01-03"}},
		}
		snap := roster.NewSnapshot(known, nil)

		convey.Convey("When resolving the known member", func() {
			m, created := snap.ResolveMember("Alice", "Martin", "VTT")

			convey.Convey("Then the existing record is returned unchanged", func() {
				convey.So(created, convey.ShouldBeFalse)
				convey.So(m.ID, convey.ShouldEqual, "m1")
				convey.So(m.Group, convey.ShouldEqual, "Route")
			})
		})

		convey.Convey("When the name differs only in case and spacing", func() {
			m, created := snap.ResolveMember("  alice ", " MARTIN ", "")

			convey.Convey("Then lookup is case- and whitespace-insensitive", func() {
				convey.So(created, convey.ShouldBeFalse)
				convey.So(m.ID, convey.ShouldEqual, "m1")
			})
		})

		convey.Convey("When resolving an unknown member", func() {
			m, created := snap.ResolveMember("Bob", "Durand", "VTT")

			convey.Convey("Then a new record is defined with a fresh id", func() {
				convey.So(created, convey.ShouldBeTrue)
				convey.So(m.ID, convey.ShouldNotBeEmpty)
				convey.So(m.Name, convey.ShouldEqual, "Bob Durand")
				convey.So(m.Group, convey.ShouldEqual, "VTT")
				convey.So(m.ParticipationCount, convey.ShouldEqual, 0)
			})

			convey.Convey("And resolving the same name again returns the same record", func() {
				again, createdAgain := snap.ResolveMember("Bob", "Durand", "")
				convey.So(createdAgain, convey.ShouldBeFalse)
				convey.So(again.ID, convey.ShouldEqual, m.ID)
			})
		})

		convey.Convey("When the row's group cell is blank", func() {
			m, created := snap.ResolveMember("Chloé", "Petit", "  ")

			convey.Convey("Then the default group is applied", func() {
				convey.So(created, convey.ShouldBeTrue)
				convey.So(m.Group, convey.ShouldEqual, "Route")
			})
		})

		convey.Convey("When mutating a resolved member", func() {
			m, _ := snap.ResolveMember("Alice", "Martin", "")
			m.AddDate("2026-02-07")

			convey.Convey("Then the caller's input slice is not aliased", func() {
				convey.So(known[0].AttendedDates, convey.ShouldHaveLength, 1)
			})
		})
	})

	convey.Convey("Given a snapshot with custom defaults", t, func() {
		snap := roster.NewSnapshot(nil, nil,
			roster.WithDefaultGroup("Gravel"),
			roster.WithEventDefaults("place du marché", "09:00"),
		)

		convey.Convey("When defining a member and an event", func() {
			m, _ := snap.ResolveMember("Bob", "Durand", "")
			e, _ := snap.ResolveEvent("2026-03-07")

			convey.Convey("Then the configured defaults are stamped", func() {
				convey.So(m.Group, convey.ShouldEqual, "Gravel")
				convey.So(e.Location, convey.ShouldEqual, "place du marché")
				convey.So(e.MeetingTime, convey.ShouldEqual, "09:00")
			})
		})
	})
}

func TestSnapshotResolveEvent(t *testing.T) {
	convey.Convey("Given a snapshot with one known event", t, func() {
		events := []model.Event{
			{ID: "e1", ISODate: "2026-01-03", Location: "col du Tourmalet"},
		}
		snap := roster.NewSnapshot(nil, events)

		convey.Convey("When resolving the known date", func() {
			e, created := snap.ResolveEvent("2026-01-03")

			convey.Convey("Then the existing event is returned with its fields intact", func() {
				convey.So(created, convey.ShouldBeFalse)
				convey.So(e.ID, convey.ShouldEqual, "e1")
				convey.So(e.Location, convey.ShouldEqual, "col du Tourmalet")
				convey.So(e.FromImport, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When resolving an unknown date", func() {
			e, created := snap.ResolveEvent("2026-01-10")

			convey.Convey("Then a new event is defined with the import marker", func() {
				convey.So(created, convey.ShouldBeTrue)
				convey.So(e.ID, convey.ShouldNotBeEmpty)
				convey.So(e.ISODate, convey.ShouldEqual, "2026-01-10")
				convey.So(e.Location, convey.ShouldEqual, "départ club")
				convey.So(e.MeetingTime, convey.ShouldEqual, "08:30")
				convey.So(e.FromImport, convey.ShouldBeTrue)
			})

			convey.Convey("And the same date resolves to the same event afterwards", func() {
				again, createdAgain := snap.ResolveEvent("2026-01-10")
				convey.So(createdAgain, convey.ShouldBeFalse)
				convey.So(again.ID, convey.ShouldEqual, e.ID)
			})
		})
	})
}

func TestSnapshotEventsInPeriod(t *testing.T) {
	convey.Convey("Given events across two years", t, func() {
		events := []model.Event{
			{ID: "e1", ISODate: "2025-12-20"},
			{ID: "e2", ISODate: "2026-01-03"},
			{ID: "e3", ISODate: "2026-06-13"},
		}
		snap := roster.NewSnapshot(nil, events)

		convey.Convey("When listing the 2026 period", func() {
			in := snap.EventsInPeriod("2026-")

			convey.Convey("Then only the period's events are returned", func() {
				convey.So(in, convey.ShouldHaveLength, 2)
				for _, e := range in {
					convey.So(e.ISODate, convey.ShouldStartWith, "2026-")
				}
			})
		})
	})
}
