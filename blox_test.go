package blox

import (
	"bytes"
	"math/rand"
	"sync"
	"testing"
)

func TestPackageLevelRoundTrip(t *testing.T) {
	SetGlobalOptions(TypeSize(4), CLevel(5))

	src := make([]byte, 4*2000)
	rand.New(rand.NewSource(31)).Read(src)

	out, err := Compress(src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	dst := make([]byte, len(src))
	if err := Decompress(out, dst); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Fatalf("round trip mismatch")
	}
}

func TestPackageLevelConcurrentCallsSerialiseOnGlobalMutex(t *testing.T) {
	SetGlobalOptions(TypeSize(1), CLevel(5))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := bytes.Repeat([]byte{byte(i)}, 4096)
			out, err := Compress(src)
			if err != nil {
				errs[i] = err
				return
			}
			dst := make([]byte, len(src))
			errs[i] = Decompress(out, dst)
			if errs[i] == nil && !bytes.Equal(dst, src) {
				t.Errorf("goroutine %d: round trip mismatch", i)
			}
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}
}
