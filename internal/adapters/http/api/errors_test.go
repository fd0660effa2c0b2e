package api

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given a wrapped API error", t, func() {
		cause := errors.New("boom")
		err := WrapKind("api.op", ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, ErrForbidden), ShouldBeFalse)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("And NewKind and Wrap render their parts", func() {
			So(NewKind("api.op", ErrUnauthorized).Error(), ShouldEqual, "api.op: unauthorized")
			So(Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
			So(Wrap("api.op", nil), ShouldBeNil)
		})
	})
}

func TestErrorType(t *testing.T) {
	Convey("Given HTTP status codes", t, func() {
		So(errorType(500), ShouldEqual, "server_error")
		So(errorType(401), ShouldEqual, "unauthorized")
		So(errorType(403), ShouldEqual, "forbidden")
		So(errorType(404), ShouldEqual, "not_found")
		So(errorType(413), ShouldEqual, "too_large")
		So(errorType(400), ShouldEqual, "client_error")
		So(errorType(200), ShouldEqual, "unknown")
	})
}
