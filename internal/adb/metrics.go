package adb

import (
	"io"
	"sync/atomic"

	vm "github.com/VictoriaMetrics/metrics"
)

// Metrics is an interface for tracking session statistics. Transport
// sessions and streams call Increment* as they work; a collector reads
// back via Get* or, for the VictoriaMetrics-backed implementation,
// scrapes WritePrometheus.
type Metrics interface {
	IncrementPacketsIn()
	IncrementPacketsOut()
	IncrementBytesIn(n int64)
	IncrementBytesOut(n int64)
	IncrementStreamsOpened()
	IncrementStreamsClosed()
	IncrementSyncTransfers()
	IncrementShellCommands()

	GetPacketsIn() int64
	GetPacketsOut() int64
	GetBytesIn() int64
	GetBytesOut() int64
	GetStreamsOpened() int64
	GetStreamsClosed() int64
	GetSyncTransfers() int64
	GetShellCommands() int64
}

// DefaultMetrics implements Metrics with plain atomic counters, with no
// external dependency. It's the Config default so the package works
// standalone; Server wiring normally swaps in VMMetrics instead.
type DefaultMetrics struct {
	packetsIn      int64
	packetsOut     int64
	bytesIn        int64
	bytesOut       int64
	streamsOpened  int64
	streamsClosed  int64
	syncTransfers  int64
	shellCommands  int64
}

// NewDefaultMetrics creates a zeroed DefaultMetrics.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementPacketsIn()        { atomic.AddInt64(&m.packetsIn, 1) }
func (m *DefaultMetrics) IncrementPacketsOut()       { atomic.AddInt64(&m.packetsOut, 1) }
func (m *DefaultMetrics) IncrementBytesIn(n int64)   { atomic.AddInt64(&m.bytesIn, n) }
func (m *DefaultMetrics) IncrementBytesOut(n int64)  { atomic.AddInt64(&m.bytesOut, n) }
func (m *DefaultMetrics) IncrementStreamsOpened()    { atomic.AddInt64(&m.streamsOpened, 1) }
func (m *DefaultMetrics) IncrementStreamsClosed()    { atomic.AddInt64(&m.streamsClosed, 1) }
func (m *DefaultMetrics) IncrementSyncTransfers()    { atomic.AddInt64(&m.syncTransfers, 1) }
func (m *DefaultMetrics) IncrementShellCommands()    { atomic.AddInt64(&m.shellCommands, 1) }

func (m *DefaultMetrics) GetPacketsIn() int64     { return atomic.LoadInt64(&m.packetsIn) }
func (m *DefaultMetrics) GetPacketsOut() int64    { return atomic.LoadInt64(&m.packetsOut) }
func (m *DefaultMetrics) GetBytesIn() int64       { return atomic.LoadInt64(&m.bytesIn) }
func (m *DefaultMetrics) GetBytesOut() int64      { return atomic.LoadInt64(&m.bytesOut) }
func (m *DefaultMetrics) GetStreamsOpened() int64 { return atomic.LoadInt64(&m.streamsOpened) }
func (m *DefaultMetrics) GetStreamsClosed() int64 { return atomic.LoadInt64(&m.streamsClosed) }
func (m *DefaultMetrics) GetSyncTransfers() int64 { return atomic.LoadInt64(&m.syncTransfers) }
func (m *DefaultMetrics) GetShellCommands() int64 { return atomic.LoadInt64(&m.shellCommands) }

// VMMetrics backs Metrics with a dedicated VictoriaMetrics metric set so a
// process hosting several Servers can expose each on its own /metrics
// registry rather than colliding on the global default set.
type VMMetrics struct {
	set *vm.Set

	packetsIn     *vm.Counter
	packetsOut    *vm.Counter
	bytesIn       *vm.Counter
	bytesOut      *vm.Counter
	streamsOpened *vm.Counter
	streamsClosed *vm.Counter
	syncTransfers *vm.Counter
	shellCommands *vm.Counter
}

// NewVMMetrics creates a Metrics implementation backed by a fresh
// VictoriaMetrics metric set, registered under the mockadbd_ prefix.
func NewVMMetrics() *VMMetrics {
	set := vm.NewSet()
	return &VMMetrics{
		set:           set,
		packetsIn:     set.NewCounter("mockadbd_packets_in_total"),
		packetsOut:    set.NewCounter("mockadbd_packets_out_total"),
		bytesIn:       set.NewCounter("mockadbd_bytes_in_total"),
		bytesOut:      set.NewCounter("mockadbd_bytes_out_total"),
		streamsOpened: set.NewCounter("mockadbd_streams_opened_total"),
		streamsClosed: set.NewCounter("mockadbd_streams_closed_total"),
		syncTransfers: set.NewCounter("mockadbd_sync_transfers_total"),
		shellCommands: set.NewCounter("mockadbd_shell_commands_total"),
	}
}

// WritePrometheus renders this set's metrics in Prometheus exposition
// format, for mounting under an HTTP /metrics handler.
func (m *VMMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

func (m *VMMetrics) IncrementPacketsIn()       { m.packetsIn.Inc() }
func (m *VMMetrics) IncrementPacketsOut()      { m.packetsOut.Inc() }
func (m *VMMetrics) IncrementBytesIn(n int64)  { m.bytesIn.Add(int(n)) }
func (m *VMMetrics) IncrementBytesOut(n int64) { m.bytesOut.Add(int(n)) }
func (m *VMMetrics) IncrementStreamsOpened()   { m.streamsOpened.Inc() }
func (m *VMMetrics) IncrementStreamsClosed()   { m.streamsClosed.Inc() }
func (m *VMMetrics) IncrementSyncTransfers()   { m.syncTransfers.Inc() }
func (m *VMMetrics) IncrementShellCommands()   { m.shellCommands.Inc() }

func (m *VMMetrics) GetPacketsIn() int64     { return int64(m.packetsIn.Get()) }
func (m *VMMetrics) GetPacketsOut() int64    { return int64(m.packetsOut.Get()) }
func (m *VMMetrics) GetBytesIn() int64       { return int64(m.bytesIn.Get()) }
func (m *VMMetrics) GetBytesOut() int64      { return int64(m.bytesOut.Get()) }
func (m *VMMetrics) GetStreamsOpened() int64 { return int64(m.streamsOpened.Get()) }
func (m *VMMetrics) GetStreamsClosed() int64 { return int64(m.streamsClosed.Get()) }
func (m *VMMetrics) GetSyncTransfers() int64 { return int64(m.syncTransfers.Get()) }
func (m *VMMetrics) GetShellCommands() int64 { return int64(m.shellCommands.Get()) }
