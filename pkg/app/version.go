package app

// version is overridable at build time:
//
//	go build -ldflags "-X github.com/small-frappuccino/activityboard/pkg/app.version=v1.2.3"
var version = "dev"

// Version reports the build version.
func Version() string {
	return version
}
