package waiter

import (
	"errors"
	"testing"

	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/reflectx"
	"github.com/stretchr/testify/require"
)

type (
	owner struct {
		peer *Deferred[*peer]
		Name string `prop:"owner.name,default=owner"`
	}
	peer struct {
		owner *owner `inject:""`
	}

	eagerLeft struct {
		Right *eagerRight `inject:""`
	}
	eagerRight struct {
		Left *eagerLeft `inject:""`
	}
)

func cycleBuilder() ContainerBuilder {
	b := newBuilder(nil)
	Struct[*owner](b)
	Struct[*peer](b)
	return b
}

func TestTwoPhase_CycleRequestedFromOwner(t *testing.T) {
	c := cycleBuilder().MustBuild()

	o := Get[*owner](c)
	require.True(t, o.peer.IsInitialized())
	p := o.peer.Get()
	require.Same(t, o, p.owner)
	require.Same(t, p, Get[*peer](c))
	require.Equal(t, "owner", o.Name)
}

func TestTwoPhase_CycleRequestedFromPeer(t *testing.T) {
	c := cycleBuilder().MustBuild()

	p := Get[*peer](c)
	o := Get[*owner](c)
	require.Same(t, o, p.owner)
	require.Same(t, p, o.peer.Get())
}

func TestTwoPhase_CycleWithFreshOwner(t *testing.T) {
	c := cycleBuilder().MustBuild()

	fresh := Create[*owner](c)
	shared := Get[*owner](c)
	require.NotSame(t, fresh, shared)
	// the deferred peer is the shared one, which points at the shared owner
	require.Same(t, Get[*peer](c), fresh.peer.Get())
	require.Same(t, shared, fresh.peer.Get().owner)
}

func TestTwoPhase_EagerCycleRejectedOnBuild(t *testing.T) {
	b := newBuilder(nil)
	Struct[*eagerLeft](b)
	Struct[*eagerRight](b)

	_, err := b.Build()
	var ce *errorx.CircularDependencyError
	require.True(t, errors.As(err, &ce))
	require.Len(t, ce.Path, 3)
	require.Equal(t, ce.Path[0], ce.Path[2])
}

func TestTwoPhase_EagerCycleReportedOnRequest(t *testing.T) {
	b := newBuilder(nil)
	b.ConfigureOptions(func(o *Options) { o.ValidateOnBuild = false })
	Struct[*eagerLeft](b)
	Struct[*eagerRight](b)

	c := b.MustBuild()

	_, err := TryGet[*eagerLeft](c)
	var ce *errorx.CircularDependencyError
	require.True(t, errors.As(err, &ce))
	require.Contains(t, ce.Message, "eagerLeft -> *waiter.eagerRight -> *waiter.eagerLeft")
}

type (
	manualA struct{ b *Deferred[*manualB] }
	manualB struct{ a *manualA }
)

func TestTwoPhase_ComponentWithFinish(t *testing.T) {
	b := newBuilder(nil)
	Component(b, func(Container) *manualA {
		return &manualA{b: NewDeferred[*manualB]()}
	}, WithFinish(func(c Container, a *manualA) {
		InitDeferred(c, a.b)
	}), WithDependencies(Dependency{Type: reflectx.TypeOf[*manualB](), Kind: Dependency_Deferred}))
	Component(b, func(c Container) *manualB {
		return &manualB{a: Get[*manualA](c)}
	}, WithDependencies(Dependency{Type: reflectx.TypeOf[*manualA]()}))

	c := b.MustBuild()

	bb := Get[*manualB](c)
	require.Same(t, bb, bb.a.b.Get())
	require.Same(t, Get[*manualA](c), bb.a)
}

func TestTwoPhase_SharedRequestWhileBuilding(t *testing.T) {
	b := newBuilder(nil)
	Component(b, func(Container) *manualA {
		return &manualA{b: NewDeferred[*manualB]()}
	}, WithFinish(func(c Container, a *manualA) {
		// a plain Get can not hand out a value that is not created yet
		a.b.Init(Get[*manualB](c))
	}))
	Component(b, func(c Container) *manualB {
		return &manualB{a: Get[*manualA](c)}
	})

	c := b.MustBuild()

	_, err := TryGet[*manualB](c)
	var ce *errorx.CircularDependencyError
	require.True(t, errors.As(err, &ce))
}

func TestTwoPhase_DeferredInterface(t *testing.T) {
	b := newBuilder(nil)
	Struct[*clock](b)
	Struct[*scheduler](b)
	Provides[ticker, *clock](b)

	c := b.MustBuild()

	s := Get[*scheduler](c)
	require.Same(t, Get[*clock](c), s.ticker.Get())
	require.Same(t, s, Get[*clock](c).scheduler)
}

type (
	ticker interface{ Tick() }

	clock struct {
		scheduler *scheduler `inject:""`
	}
	scheduler struct {
		ticker *Deferred[ticker]
	}
)

func (*clock) Tick() {}
