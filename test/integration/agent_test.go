package integration

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voluzi/cloudvitals/pkg/metrics"
	"github.com/voluzi/cloudvitals/pkg/pipe"
	"github.com/voluzi/cloudvitals/pkg/stress"
)

func recentReason(class string) (stress.EndReason, error) {
	status, err := client.ListStress(context.Background())
	if err != nil {
		return "", err
	}
	for _, rec := range status.Recent {
		if rec.Class == class {
			return rec.Reason, nil
		}
	}
	return "", nil
}

func runningClasses() ([]string, error) {
	status, err := client.ListStress(context.Background())
	if err != nil {
		return nil, err
	}
	classes := make([]string, 0, len(status.Running))
	for _, job := range status.Running {
		classes = append(classes, job.Class)
	}
	return classes, nil
}

func invocationLines() []string {
	b, err := os.ReadFile(invocations)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

var _ = Describe("Agent", func() {
	Context("Sampling", func() {
		It("should serve live host metrics", func() {
			Eventually(func() (uint64, error) {
				sample, err := client.GetMetrics(context.Background())
				if err != nil {
					return 0, err
				}
				return sample.Tick, nil
			}).Should(BeNumerically(">=", 2))

			sample, err := client.GetMetrics(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(sample.Memory.Total).To(BeNumerically(">", 0))
			Expect(sample.DiskSpace.Total).To(BeNumerically(">", 0))
			Expect(sample.CPUPercent).To(BeNumerically(">=", 0))
			Expect(sample.CPUPercent).To(BeNumerically("<=", 100))
			Expect(sample.Memory.Percent).To(BeNumerically("<=", 100))
			Expect(sample.NetworkBytesPerSec).To(BeNumerically(">=", 0))
			Expect(sample.Timestamp).To(BeTemporally("~", time.Now(), 5*time.Second))
		})

		It("should publish samples to the fifo with increasing ticks", func() {
			var first, second *pipe.Message
			Eventually(subscriber.Messages).Should(Receive(&first))
			Eventually(subscriber.Messages).Should(Receive(&second))

			Expect(first.Err).NotTo(HaveOccurred())
			Expect(second.Err).NotTo(HaveOccurred())
			Expect(second.Sample.Tick).To(BeNumerically(">", first.Sample.Tick))
		})

		It("should expose prometheus metrics", func() {
			resp, err := http.Get(baseURL + "/metrics/prometheus")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("cloudvitals_cpu_percent"))
			Expect(string(body)).To(ContainSubstring(`cloudvitals_memory_bytes{state="total"}`))
		})
	})

	Context("Stress jobs", func() {
		It("should start, reject duplicates and stop a job", func() {
			resp, err := client.StartStress(context.Background(), "cpu", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal("started"))

			Expect(runningClasses()).To(ContainElement("cpu"))
			Eventually(invocationLines).Should(ContainElement("cpu 0"))

			_, err = client.StartStress(context.Background(), "cpu", time.Minute)
			Expect(err).To(MatchError(ContainSubstring("HTTP 400")))

			Expect(client.StopStress(context.Background(), "cpu")).To(Succeed())
			Expect(runningClasses()).NotTo(ContainElement("cpu"))
			Expect(recentReason("cpu")).To(Equal(stress.ReasonStopped))

			err = client.StopStress(context.Background(), "cpu")
			Expect(err).To(MatchError(ContainSubstring("HTTP 400")))
		})

		It("should stop a job when its duration elapses", func() {
			_, err := client.StartStress(context.Background(), "io", time.Second)
			Expect(err).NotTo(HaveOccurred())
			Eventually(invocationLines).Should(ContainElement("io 1"))

			Eventually(runningClasses).ShouldNot(ContainElement("io"))
			Expect(recentReason("io")).To(Equal(stress.ReasonExpired))

			_, err = client.StartStress(context.Background(), "io", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(client.StopStress(context.Background(), "io")).To(Succeed())
		})

		It("should run different classes side by side", func() {
			for _, class := range []string{"network", "filesystem"} {
				_, err := client.StartStress(context.Background(), class, time.Minute)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(runningClasses()).To(ContainElements("network", "filesystem"))

			status, err := client.ListStress(context.Background())
			Expect(err).NotTo(HaveOccurred())
			for _, job := range status.Running {
				Expect(job.Pid).To(BeNumerically(">", 0))
			}

			for _, class := range []string{"network", "filesystem"} {
				Expect(client.StopStress(context.Background(), class)).To(Succeed())
			}
		})
	})

	It("should keep sample JSON keys stable", func() {
		resp, err := http.Get(baseURL + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var sample metrics.Sample
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(sample.UnmarshalJSON(body)).To(Succeed())
		for _, key := range []string{`"cpu_percent"`, `"memory_percent"`, `"disk_percent"`, `"network_bytes_per_sec"`, `"disk_read"`} {
			Expect(string(body)).To(ContainSubstring(key))
		}
	})
})
