package agent

import (
	"bytes"
	"net/http"

	prom "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/ptr"

	"github.com/voluzi/cloudvitals/pkg/metrics"
	"github.com/voluzi/cloudvitals/pkg/stress"
)

const (
	metricPrefix      = "cloudvitals_"
	promTextMediaType = "text/plain; version=0.0.4; charset=utf-8"
)

func (a *Agent) prometheus(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := WriteMetricFamilies(&buf, MetricFamilies(a.store.Get(), a.supervisor.Jobs())); err != nil {
		log.Errorf("error rendering prometheus metrics: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", promTextMediaType)
	_, _ = w.Write(buf.Bytes())
}

// MetricFamilies renders a sample and the running stress jobs as gauges.
func MetricFamilies(sample metrics.Sample, jobs []stress.JobInfo) []*prom.MetricFamily {
	fams := []*prom.MetricFamily{
		gauge("sample_tick", "Number of samples taken since the agent started.",
			metric(float64(sample.Tick))),
		gauge("cpu_percent", "System-wide CPU utilization.",
			metric(sample.CPUPercent)),
	}
	fams = append(fams, usageFamilies("memory", "physical memory", sample.Memory)...)
	fams = append(fams, usageFamilies("swap", "swap space", sample.Swap)...)
	fams = append(fams, usageFamilies("disk_space", "the monitored filesystem", sample.DiskSpace)...)
	fams = append(fams,
		gauge("network_bytes_per_second", "Combined sent and received network throughput.",
			metric(sample.NetworkBytesPerSec)),
		gauge("disk_io_bytes_per_second", "Disk throughput by direction.",
			metric(sample.DiskReadBytesPerSec, "direction", "read"),
			metric(sample.DiskWriteBytesPerSec, "direction", "write")),
	)

	running := make([]*prom.Metric, 0, len(jobs))
	for _, job := range jobs {
		running = append(running, metric(1, "class", job.Class))
	}
	fams = append(fams, gauge("stress_job_running", "Stress jobs currently running, by class.", running...))
	return fams
}

// WriteMetricFamilies writes fams in the text exposition format. Families
// without metrics are skipped.
func WriteMetricFamilies(buf *bytes.Buffer, fams []*prom.MetricFamily) error {
	for _, fam := range fams {
		if len(fam.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(buf, fam); err != nil {
			return err
		}
	}
	return nil
}

func usageFamilies(name, what string, u metrics.Usage) []*prom.MetricFamily {
	return []*prom.MetricFamily{
		gauge(name+"_bytes", "Size of "+what+" by state.",
			metric(float64(u.Total), "state", "total"),
			metric(float64(u.Used), "state", "used"),
			metric(float64(u.Free), "state", "free")),
		gauge(name+"_percent", "Utilization of "+what+".",
			metric(u.Percent)),
	}
}

func gauge(name, help string, ms ...*prom.Metric) *prom.MetricFamily {
	return &prom.MetricFamily{
		Name:   ptr.To(metricPrefix + name),
		Help:   ptr.To(help),
		Type:   prom.MetricType_GAUGE.Enum(),
		Metric: ms,
	}
}

// metric builds a gauge sample. labels are name/value pairs.
func metric(v float64, labels ...string) *prom.Metric {
	m := &prom.Metric{Gauge: &prom.Gauge{Value: ptr.To(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &prom.LabelPair{
			Name:  ptr.To(labels[i]),
			Value: ptr.To(labels[i+1]),
		})
	}
	return m
}
