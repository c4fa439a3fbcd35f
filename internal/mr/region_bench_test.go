package mr

import (
	"fmt"
	"math/rand"
	"testing"
)

// BenchmarkRegion measures Region's sharded-lock read/write path at a few
// representative fragment sizes, mirroring the teacher's
// backend/mem_bench_test.go sizing sweep.
func BenchmarkRegion(b *testing.B) {
	const regionSize = 64 << 20
	sizes := []int{4 * 1024, 128 * 1024, 1024 * 1024}

	for _, size := range sizes {
		b.Run(formatSize(size), func(b *testing.B) {
			r := NewRegion(regionSize)
			data := make([]byte, size)
			rand.Read(data)

			b.Run("WriteAt", func(b *testing.B) {
				b.SetBytes(int64(size))
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					off := rand.Intn(regionSize - size)
					r.WriteAt(data, off)
				}
			})

			b.Run("ReadAt", func(b *testing.B) {
				buf := make([]byte, size)
				b.SetBytes(int64(size))
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					off := rand.Intn(regionSize - size)
					r.ReadAt(buf, off, size)
				}
			})
		})
	}
}

// BenchmarkRegionConcurrent measures contention across the shard stripe
// under mixed concurrent read/write fragment traffic.
func BenchmarkRegionConcurrent(b *testing.B) {
	const regionSize = 64 << 20
	const fragSize = 4096
	r := NewRegion(regionSize)

	for _, concurrency := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("Concurrency_%d", concurrency), func(b *testing.B) {
			b.SetBytes(fragSize)
			b.RunParallel(func(pb *testing.PB) {
				buf := make([]byte, fragSize)
				data := make([]byte, fragSize)
				rand.Read(data)
				for pb.Next() {
					off := rand.Intn(regionSize - fragSize)
					if rand.Float32() < 0.7 {
						r.ReadAt(buf, off, fragSize)
					} else {
						r.WriteAt(data, off)
					}
				}
			})
		})
	}
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%dMB", n/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%dKB", n/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
