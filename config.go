package rtheap

// Config groups the allocator's compile-time tunables into a runtime
// struct. The teacher (and the FreeRTOS/Amlogic source it was rewritten
// from) expresses these as preprocessor macros (CONFIG_MEMORY_ERROR_DETECTION,
// CONFIG_MEMORY_ERROR_DETECTION_SIZE, MAX_REGION_CNT); Go has no
// preprocessor, so they become fields set once via Configure before the
// heap is first used.
type Config struct {
	// ErrorDetectionEnabled turns on canary writing/checking and the
	// tracking table. When false, the allocator still functions but
	// CheckIntegrity, CheckNode and MemoryScan report zero findings.
	ErrorDetectionEnabled bool

	// TrackingSlots is the fixed size of the allocation tracking table
	// (CONFIG_MEMORY_ERROR_DETECTION_SIZE). A full table is tolerated —
	// tracking is best-effort, not a hard allocation limit.
	TrackingSlots int

	// MaxRegions carries MAX_REGION_CNT. DefineRegions, AddRegion and
	// ReservePages do not read it, so the number of regions is not
	// bounded by it.
	MaxRegions int

	// BacktraceDepth is the number of return addresses captured per
	// tracked allocation.
	BacktraceDepth int

	// DumpSurroundingWords, when true, makes CheckIntegrity/CheckNode log
	// the eight machine words before and after a corrupted address in
	// addition to the summary line, mirroring
	// aml_med_ext.c's print_memory_site_info under
	// CONFIG_MEMORY_ERROR_DETECTION_PRINT.
	DumpSurroundingWords bool

	CriticalSection CriticalSection
	Scheduler       Scheduler
	TaskSource      TaskSource
	Backtrace       BacktraceProvider
	Log             LogSink
	DefaultRegions  DefaultRegionSource
	StaticRegions   StaticRegionSource
}

// DefaultConfig returns the configuration the allocator uses until
// Configure is called: error detection on, 32 tracking slots, 8 regions, a
// 5-frame backtrace (the original's UNWIND_DEPTH), no surrounding-word
// dump, and host-friendly no-op collaborators.
func DefaultConfig() Config {
	return Config{
		ErrorDetectionEnabled: true,
		TrackingSlots:         32,
		MaxRegions:            8,
		BacktraceDepth:        5,
		DumpSurroundingWords:  false,
		CriticalSection:       newDefaultCriticalSection(),
		Scheduler:             noopScheduler{},
		TaskSource:            nil,
		Backtrace:             nil,
		Log:                   discardLog{},
		DefaultRegions:        nil,
	}
}

var activeConfig = DefaultConfig()

// Configure replaces the active configuration. It must be called, if at
// all, before the first allocator entry point runs; calling it afterward
// has unspecified effect on in-flight tracking/canary state, same as the
// teacher's convention that the default region table is only mutable
// before the first DefineRegions call.
func Configure(c Config) {
	if c.CriticalSection == nil {
		c.CriticalSection = newDefaultCriticalSection()
	}
	if c.Scheduler == nil {
		c.Scheduler = noopScheduler{}
	}
	if c.Log == nil {
		c.Log = discardLog{}
	}
	if c.TrackingSlots <= 0 {
		c.TrackingSlots = 32
	}
	if c.MaxRegions <= 0 {
		c.MaxRegions = 8
	}
	if c.BacktraceDepth <= 0 {
		c.BacktraceDepth = 5
	}
	activeConfig = c
	resetTrackingTable()
}

func logf(format string, args ...any) {
	activeConfig.Log.Logf(format, args...)
}
