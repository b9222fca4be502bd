package waiter

import (
	"io"
	"testing"
)

func buildBenchContainer(concurrent bool) Container {
	cb := newBuilder(map[string]any{"input": "bench"})
	cb.ConfigureOptions(func(o *Options) { o.Concurrent = concurrent })
	addReadWriter(cb)
	Struct[*counter](cb)
	return cb.MustBuild()
}

func resolve(c Container) {
	_ = Get[io.ReadWriter](c)
}

func Benchmark_Get(b *testing.B) {
	c := buildBenchContainer(false)

	resolve(c)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resolve(c)
	}
}

func Benchmark_GetConcurrent(b *testing.B) {
	c := buildBenchContainer(true)

	resolve(c)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			resolve(c)
		}
	})
}

func Benchmark_Create(b *testing.B) {
	c := buildBenchContainer(false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Create[io.ReadWriter](c)
	}
}

func Benchmark_Struct(b *testing.B) {
	c := buildBenchContainer(false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Create[*counter](c)
	}
}
