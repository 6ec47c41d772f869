package serialmux

import (
	"bytes"
	"errors"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/snowdepth/internal/measure"
)

// DevInterval is how often the dev-mode port emits a batch.
const DevInterval = 5 * time.Second

// MockSerialPort is a read-only in-memory port. Writes are discarded.
type MockSerialPort struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	once sync.Once
	done chan struct{}
}

func (m *MockSerialPort) Read(p []byte) (int, error)  { return m.r.Read(p) }
func (m *MockSerialPort) Write(p []byte) (int, error) { return len(p), nil }

func (m *MockSerialPort) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.w.Close()
	})
	return m.r.Close()
}

// NewMockSerialMux returns a mux over a port that writes next() as a line
// every interval until closed.
func NewMockSerialMux(interval time.Duration, next func() string) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	port := &MockSerialPort{r: r, w: w, done: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-port.done:
				return
			case <-ticker.C:
				if _, err := io.WriteString(w, next()+"\n"); err != nil {
					return
				}
			}
		}
	}()

	return NewSerialMux(port)
}

// SyntheticBatch returns a CSV line of measure.SampleCount round-trip times
// for a surface at distanceCM, with up to jitterCM of noise per sample.
func SyntheticBatch(rng *rand.Rand, distanceCM, jitterCM, tempC float64) string {
	speed, err := measure.SpeedOfSound(tempC)
	if err != nil || speed == 0 {
		speed, _ = measure.SpeedOfSound(measure.DefaultTemperatureC)
	}
	fields := make([]string, measure.SampleCount)
	for i := range fields {
		d := distanceCM + (rng.Float64()*2-1)*jitterCM
		fields[i] = strconv.FormatFloat(2*d/speed, 'g', -1, 64)
	}
	return strings.Join(fields, ",")
}

// TestableSerialPort is a SerialPorter whose reads are fed from AddReadData.
// Reads block until data arrives or the port is closed.
type TestableSerialPort struct {
	mu          sync.Mutex
	readBuffer  bytes.Buffer
	WriteBuffer bytes.Buffer
	ReadError   error
	CloseError  error
	Closed      bool
	readCond    *sync.Cond
}

func NewTestableSerialPort() *TestableSerialPort {
	t := &TestableSerialPort{}
	t.readCond = sync.NewCond(&t.mu)
	return t
}

func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.Closed && t.ReadError == nil && t.readBuffer.Len() == 0 {
		t.readCond.Wait()
	}
	if t.readBuffer.Len() > 0 {
		return t.readBuffer.Read(p)
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	return 0, io.EOF
}

func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	return t.WriteBuffer.Write(p)
}

func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData queues data for subsequent reads.
func (t *TestableSerialPort) AddReadData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readBuffer.WriteString(data)
	t.readCond.Broadcast()
}

// FailRead makes the next read return err once buffered data is drained.
func (t *TestableSerialPort) FailRead(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadError = err
	t.readCond.Broadcast()
}
