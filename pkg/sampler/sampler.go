package sampler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/voluzi/cloudvitals/pkg/metrics"
)

const DefaultInterval = time.Second

// Store receives every sample produced by the sampler.
type Store interface {
	Set(metrics.Sample)
}

// Publisher relays samples out of process. Failures are expected and only
// logged.
type Publisher interface {
	Publish(metrics.Sample) error
}

// CounterSnapshot holds the cumulative counters seen on the previous tick.
// Network and disk counters are tracked separately so a failed read of one
// group leaves the other's baseline untouched.
type CounterSnapshot struct {
	Net    NetCounters
	NetAt  time.Time
	Disk   DiskCounters
	DiskAt time.Time
}

// Sampler produces one metrics.Sample per interval.
type Sampler struct {
	reader    HostReader
	store     Store
	publisher Publisher
	interval  time.Duration
	diskPath  string
	now       func() time.Time

	tick     uint64
	snapshot CounterSnapshot
	hasNet   bool
	hasDisk  bool
}

type Option func(*Sampler)

func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		s.interval = d
	}
}

func WithDiskPath(path string) Option {
	return func(s *Sampler) {
		s.diskPath = path
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Sampler) {
		s.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		s.now = now
	}
}

func New(reader HostReader, store Store, opts ...Option) *Sampler {
	s := &Sampler{
		reader:   reader,
		store:    store,
		interval: DefaultInterval,
		diskPath: "/",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run samples until ctx is cancelled. It primes the counter baseline first so
// the first published sample already carries rates.
func (s *Sampler) Run(ctx context.Context) {
	s.Prime()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.WithField("interval", s.interval).Info("sampler started")
	for {
		select {
		case <-ctx.Done():
			log.Info("sampler stopped")
			return
		case <-ticker.C:
			s.collect()
		}
	}
}

func (s *Sampler) collect() {
	sample := s.Sample()
	s.store.Set(sample)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(sample); err != nil {
		log.WithField("tick", sample.Tick).Debugf("sample not delivered to pipe: %v", err)
	}
}

// Prime captures the counter baseline without producing a sample.
func (s *Sampler) Prime() {
	if c, err := s.reader.NetCounters(); err == nil {
		s.snapshot.Net, s.snapshot.NetAt, s.hasNet = c, s.now(), true
	}
	if c, err := s.reader.DiskCounters(); err == nil {
		s.snapshot.Disk, s.snapshot.DiskAt, s.hasDisk = c, s.now(), true
	}
}

// Snapshot returns the counters the next rate computation will diff against.
func (s *Sampler) Snapshot() CounterSnapshot {
	return s.snapshot
}

// Sample runs one tick: it reads every metric, derives rates against the
// previous snapshot and advances it. It never fails; unreadable metrics are
// reported as zero. Sample is not safe for concurrent use.
func (s *Sampler) Sample() metrics.Sample {
	s.tick++
	sample := metrics.Sample{
		Tick:      s.tick,
		Timestamp: s.now(),
	}

	if v, err := s.reader.CPUPercent(); err == nil {
		sample.CPUPercent = metrics.ClampPercent(v)
	} else {
		readFailed("cpu", err)
	}

	if u, err := s.reader.VirtualMemory(); err == nil {
		sample.Memory = normalize(u)
	} else {
		readFailed("memory", err)
	}

	if u, err := s.reader.SwapMemory(); err == nil {
		sample.Swap = normalize(u)
	} else {
		readFailed("swap", err)
	}

	if u, err := s.reader.DiskUsage(s.diskPath); err == nil {
		sample.DiskSpace = normalize(u)
	} else {
		readFailed("disk_space", err)
	}

	sample.NetworkBytesPerSec = s.networkRate()
	sample.DiskReadBytesPerSec, sample.DiskWriteBytesPerSec = s.diskRates()
	return sample
}

func (s *Sampler) networkRate() float64 {
	cur, err := s.reader.NetCounters()
	if err != nil {
		readFailed("network", err)
		return 0
	}
	at := s.now()

	var rate float64
	if s.hasNet {
		elapsed := at.Sub(s.snapshot.NetAt)
		rate = Rate(cur.BytesSent, s.snapshot.Net.BytesSent, elapsed) +
			Rate(cur.BytesRecv, s.snapshot.Net.BytesRecv, elapsed)
	}
	s.snapshot.Net, s.snapshot.NetAt, s.hasNet = cur, at, true
	return rate
}

func (s *Sampler) diskRates() (read, write float64) {
	cur, err := s.reader.DiskCounters()
	if err != nil {
		readFailed("disk_io", err)
		return 0, 0
	}
	at := s.now()

	if s.hasDisk {
		elapsed := at.Sub(s.snapshot.DiskAt)
		read = Rate(cur.ReadBytes, s.snapshot.Disk.ReadBytes, elapsed)
		write = Rate(cur.WriteBytes, s.snapshot.Disk.WriteBytes, elapsed)
	}
	s.snapshot.Disk, s.snapshot.DiskAt, s.hasDisk = cur, at, true
	return read, write
}

// Rate returns the per-second increase of a cumulative counter. A counter that
// went backwards (reset or wraparound) or a non-positive interval yields 0.
func Rate(current, previous uint64, elapsed time.Duration) float64 {
	if current < previous || elapsed <= 0 {
		return 0
	}
	return float64(current-previous) / elapsed.Seconds()
}

func normalize(u metrics.Usage) metrics.Usage {
	u.Percent = metrics.ClampPercent(u.Percent)
	return u
}

func readFailed(metric string, err error) {
	log.WithField("metric", metric).Debugf("failed to read metric: %v", err)
}
