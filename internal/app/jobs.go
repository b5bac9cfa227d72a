package app

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/pkg/metrics"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		days := a.ConfigMgr().GetInt("system", "oprlog_retention_days")
		if days == 0 {
			days = 365
		}
		a.gormDB.
			Where("opt_time < ? ", time.Now().
				Add(-time.Hour*24*time.Duration(days))).Delete(domain.SysOprLog{})
	})

	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	// QR payloads expire within minutes on the gateway side. A row stuck in
	// qr for longer holds a code nobody can scan anymore.
	_, err = a.sched.AddFunc("@every 10m", func() {
		a.gormDB.Model(&domain.Instance{}).
			Where("status = ? AND updated_at < ?", domain.StatusQr, time.Now().Add(-10*time.Minute)).
			Updates(map[string]interface{}{
				"qr_code":    "",
				"updated_at": time.Now(),
			})
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	// Collect CPU usage
	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge(metrics.GaugeCPUPercent, _cpuuse[0])
	}

	// Collect memory usage
	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge(metrics.GaugeMemPercent, _meminfo.UsedPercent)
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	// Collect process CPU usage
	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("wadesk_proc_cpu_percent", cpuuse)
	}

	// Collect process memory usage
	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("wadesk_proc_mem_mb", float64(meminfo.RSS/1024/1024))
	}
}
