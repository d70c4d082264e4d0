package stress

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"
)

const DefaultHistoryTTL = 10 * time.Minute

var (
	ErrAlreadyRunning  = errors.New("stress job already running")
	ErrNotRunning      = errors.New("no stress job running")
	ErrInvalidClass    = errors.New("stress class must be non-empty and must not contain '/'")
	ErrInvalidDuration = errors.New("stress duration must not be negative")
	ErrClosed          = errors.New("stress supervisor is shut down")
)

// SpawnError is returned by Start when the load generator could not be
// launched. The registry is left unchanged.
type SpawnError struct {
	Class string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start stress job %q: %v", e.Class, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// EndReason tells why a job left the registry.
type EndReason string

const (
	ReasonStopped  EndReason = "stopped"
	ReasonExpired  EndReason = "expired"
	ReasonExited   EndReason = "exited"
	ReasonShutdown EndReason = "shutdown"
)

// Job is a registry entry. A nil Process means the spawn is still in flight.
type Job struct {
	Class     string
	Process   Process
	StartedAt time.Time
	Duration  time.Duration

	generation uint64
	timer      *time.Timer
}

func (j *Job) starting() bool {
	return j.Process == nil
}

func (j *Job) alive() bool {
	return j.starting() || j.Process.IsAlive()
}

// JobInfo describes a running job.
type JobInfo struct {
	Class     string        `json:"class"`
	Pid       int           `json:"pid"`
	StartedAt time.Time     `json:"started_at"`
	Duration  float64       `json:"duration"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Stats     *ProcessStats `json:"stats,omitempty"`
}

// Record describes the last finished job of a class.
type Record struct {
	Class     string    `json:"class"`
	Pid       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Reason    EndReason `json:"reason"`
}

// Supervisor runs at most one load generator per class.
type Supervisor struct {
	lock       sync.Mutex
	jobs       map[string]*Job
	generation uint64
	closed     bool
	janitor    bool

	spawner Spawner
	history *ttlcache.Cache[string, Record]
	now     func() time.Time
}

type Option func(*Supervisor)

func WithHistoryTTL(ttl time.Duration) Option {
	return func(s *Supervisor) {
		s.history = ttlcache.New(ttlcache.WithTTL[string, Record](ttl))
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		s.now = now
	}
}

func NewSupervisor(spawner Spawner, opts ...Option) *Supervisor {
	s := &Supervisor{
		jobs:    make(map[string]*Job),
		spawner: spawner,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = ttlcache.New(ttlcache.WithTTL[string, Record](DefaultHistoryTTL))
	}
	return s
}

// StartJanitor starts evicting expired history records in the background.
// Shutdown stops it. Without it, expired records are only hidden from Recent.
func (s *Supervisor) StartJanitor() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed || s.janitor {
		return
	}
	s.janitor = true
	go s.history.Start()
}

// Start launches a load generator for class. A positive duration schedules an
// automatic stop. It fails with ErrAlreadyRunning when the class is busy.
// Classes are addressed as a single URL path segment, so they must not
// contain '/'.
func (s *Supervisor) Start(class string, duration time.Duration) (*JobInfo, error) {
	if class == "" || strings.Contains(class, "/") {
		return nil, ErrInvalidClass
	}
	if duration < 0 {
		return nil, ErrInvalidDuration
	}

	job, err := s.reserve(class, duration)
	if err != nil {
		return nil, err
	}

	// The slot is reserved, so the lock is not held while forking.
	proc, spawnErr := s.spawner.Spawn(class, duration)

	s.lock.Lock()
	defer s.lock.Unlock()

	owned := s.jobs[class] == job
	if spawnErr != nil {
		if owned {
			delete(s.jobs, class)
		}
		log.WithField("class", class).Errorf("failed to start stress job: %v", spawnErr)
		return nil, &SpawnError{Class: class, Err: spawnErr}
	}

	if !owned {
		// Shutdown ran while the process was being spawned.
		if err := proc.Terminate(); err != nil {
			log.WithField("class", class).Errorf("failed to terminate stress process: %v", err)
		}
		return nil, ErrClosed
	}

	job.Process = proc
	job.StartedAt = s.now()
	if duration > 0 {
		gen := job.generation
		job.timer = time.AfterFunc(duration, func() {
			s.expire(class, gen)
		})
	}

	log.WithFields(log.Fields{
		"class":    class,
		"pid":      proc.Pid(),
		"duration": duration,
	}).Info("stress job started")
	return job.info(), nil
}

func (s *Supervisor) reserve(class string, duration time.Duration) (*Job, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	if job, ok := s.jobs[class]; ok {
		if job.alive() {
			return nil, errors.WithDetails(ErrAlreadyRunning, "class", class)
		}
		s.reclaim(job, ReasonExited)
	}

	s.generation++
	job := &Job{
		Class:      class,
		Duration:   duration,
		generation: s.generation,
	}
	s.jobs[class] = job
	return job, nil
}

// Stop terminates the job running for class. It does not wait for the
// process to exit.
func (s *Supervisor) Stop(class string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	job, ok := s.jobs[class]
	if !ok || job.starting() {
		return errors.WithDetails(ErrNotRunning, "class", class)
	}
	if !job.Process.IsAlive() {
		s.reclaim(job, ReasonExited)
		return errors.WithDetails(ErrNotRunning, "class", class)
	}
	return s.terminate(job, ReasonStopped)
}

// expire is the auto-stop path. A timer that belongs to an older job of the
// same class does nothing.
func (s *Supervisor) expire(class string, generation uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	job, ok := s.jobs[class]
	if !ok || job.generation != generation || job.starting() {
		return
	}
	if !job.Process.IsAlive() {
		s.reclaim(job, ReasonExited)
		return
	}
	if err := s.terminate(job, ReasonExpired); err != nil {
		log.WithField("class", class).Errorf("failed to stop expired stress job: %v", err)
	}
}

// terminate must be called with the lock held.
func (s *Supervisor) terminate(job *Job, reason EndReason) error {
	if err := job.Process.Terminate(); err != nil {
		return errors.WrapIf(err, "terminating stress process")
	}
	s.reclaim(job, reason)

	log.WithFields(log.Fields{
		"class":  job.Class,
		"pid":    job.Process.Pid(),
		"reason": reason,
	}).Info("stress job stopped")
	return nil
}

// reclaim drops job from the registry. Must be called with the lock held.
func (s *Supervisor) reclaim(job *Job, reason EndReason) {
	if job.timer != nil {
		job.timer.Stop()
	}
	if s.jobs[job.Class] == job {
		delete(s.jobs, job.Class)
	}
	if job.starting() {
		return
	}

	s.history.Set(job.Class, Record{
		Class:     job.Class,
		Pid:       job.Process.Pid(),
		StartedAt: job.StartedAt,
		EndedAt:   s.now(),
		Reason:    reason,
	}, ttlcache.DefaultTTL)
}

// Running reports whether a live job exists for class.
func (s *Supervisor) Running(class string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	job, ok := s.jobs[class]
	return ok && !job.starting() && job.Process.IsAlive()
}

// Jobs lists running jobs sorted by class. Dead entries found on the way are
// reclaimed. Process stats are read after the lock is released.
func (s *Supervisor) Jobs() []JobInfo {
	s.lock.Lock()
	var live []*Job
	for _, job := range s.jobs {
		if job.starting() {
			continue
		}
		if !job.Process.IsAlive() {
			s.reclaim(job, ReasonExited)
			continue
		}
		live = append(live, job)
	}
	infos := make([]JobInfo, 0, len(live))
	for _, job := range live {
		infos = append(infos, *job.info())
	}
	s.lock.Unlock()

	for i, job := range live {
		if stats, err := job.Process.Stats(); err == nil {
			infos[i].Stats = stats
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Class < infos[j].Class
	})
	return infos
}

// Recent lists the last finished job per class, newest first.
func (s *Supervisor) Recent() []Record {
	records := make([]Record, 0)
	for _, item := range s.history.Items() {
		if item.IsExpired() {
			continue
		}
		records = append(records, item.Value())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].EndedAt.After(records[j].EndedAt)
	})
	return records
}

// Shutdown sends a termination signal to every live job and rejects further
// starts. It does not wait for the processes to exit.
func (s *Supervisor) Shutdown() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.closed = true
	janitor := s.janitor

	for _, job := range s.jobs {
		if !job.starting() && job.Process.IsAlive() {
			if err := job.Process.Terminate(); err != nil {
				log.WithField("class", job.Class).Errorf("failed to terminate stress process: %v", err)
			}
		}
		s.reclaim(job, ReasonShutdown)
	}
	s.lock.Unlock()

	if janitor {
		s.history.Stop()
	}
}

func (j *Job) info() *JobInfo {
	info := &JobInfo{
		Class:     j.Class,
		Pid:       j.Process.Pid(),
		StartedAt: j.StartedAt,
		Duration:  j.Duration.Seconds(),
	}
	if j.Duration > 0 {
		expires := j.StartedAt.Add(j.Duration)
		info.ExpiresAt = &expires
	}
	return info
}
