package session_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/secondvote/trends/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestRegistry(t *testing.T) {
	Convey("Given a registry with a fake clock", t, func() {
		clock := &fakeClock{t: time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)}
		r := session.NewRegistry(
			session.WithClock(clock.Now),
			session.WithIdleTTL(10*time.Minute),
			session.WithMaxSessions(2),
		)

		Convey("When a session is created", func() {
			s := r.Create()

			Convey("Then it has a UUID and an empty cache", func() {
				_, err := uuid.Parse(s.ID)
				So(err, ShouldBeNil)
				_, err = s.Cache().Get()
				So(err, ShouldEqual, session.ErrNotLoaded)
				So(r.Len(), ShouldEqual, 1)
			})

			Convey("And it can be looked up and deleted", func() {
				got, err := r.Get(s.ID)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, s)
				So(r.Delete(s.ID), ShouldBeTrue)
				So(r.Delete(s.ID), ShouldBeFalse)
				_, err = r.Get(s.ID)
				So(err, ShouldEqual, session.ErrUnknownSession)
			})
		})

		Convey("When sessions do not share state", func() {
			a, b := r.Create(), r.Create()
			a.Cache().Set(dataset("Acme"))

			Convey("Then loading one leaves the other unloaded", func() {
				_, err := b.Cache().Get()
				So(err, ShouldEqual, session.ErrNotLoaded)
			})
		})

		Convey("When the registry is full", func() {
			a := r.Create()
			clock.Advance(time.Minute)
			b := r.Create()
			clock.Advance(time.Minute)
			_, _ = r.Get(a.ID)
			c := r.Create()

			Convey("Then the session idle the longest is evicted", func() {
				So(r.Len(), ShouldEqual, 2)
				_, err := r.Get(b.ID)
				So(err, ShouldEqual, session.ErrUnknownSession)
				_, err = r.Get(a.ID)
				So(err, ShouldBeNil)
				_, err = r.Get(c.ID)
				So(err, ShouldBeNil)
			})
		})

		Convey("When sessions go idle", func() {
			stale := r.Create()
			clock.Advance(8 * time.Minute)
			fresh := r.Create()
			clock.Advance(5 * time.Minute)

			Convey("Then a sweep evicts only those past the TTL", func() {
				So(r.Sweep(clock.Now()), ShouldEqual, 1)
				_, err := r.Get(stale.ID)
				So(err, ShouldEqual, session.ErrUnknownSession)
				_, err = r.Get(fresh.ID)
				So(err, ShouldBeNil)
			})
		})
	})
}
