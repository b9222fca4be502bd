package waiter

import (
	"testing"

	"github.com/dozm/waiter/config"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newBuilder returns a builder for the default profile reading properties
// from values only.
func newBuilder(values map[string]any) ContainerBuilder {
	b := Builder()
	b.ConfigureOptions(func(o *Options) {
		o.Profile = config.DefaultProfile
		o.Store = config.FromMap(config.Source_DefaultFile, values)
	})
	return b
}
