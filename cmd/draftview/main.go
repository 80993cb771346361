package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/draftview/draftview/internal/batch"
	"github.com/draftview/draftview/internal/render"
)

const logFlags = log.Ltime | log.Lshortfile

var runtimeLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	// OpenGL contexts are tied to specific OS threads - let's pin to just one.
	runtime.LockOSThread()
	log.SetFlags(logFlags)

	if os.Getenv("DRAFTVIEW_DEBUG_RUNTIME") == "1" {
		runtimeLogger = log.New(os.Stdout, "[runtime] ", log.Ltime|log.Lmsgprefix)
	}
}

func makeTitle(title string, fps, avgFrameTime float64, renderStats render.Stats, batchStats batch.Stats) string {
	return fmt.Sprintf("%s (%.1f FPS, %.2fms/frame, %d entities, %d slots in %d containers, %d draw calls/frame, %.2fµs/draw, %.1fMiB GPU)",
		title,
		fps,
		avgFrameTime,
		batchStats.Entities,
		batchStats.ActiveSlots,
		batchStats.Containers,
		renderStats.DrawCallsPerFrame,
		renderStats.LastDrawTimeUs,
		float64(batchStats.GPUBytes)/(1024.0*1024.0),
	)
}

func main() {
	configPath := flag.String("config", "", "path to a YAML viewer config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if s := seed(); s != 0 {
		cfg.Drawing.Seed = s
	}
	if cfg.Drawing.Seed == 0 {
		cfg.Drawing.Seed = time.Now().Unix()
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("Failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	// Configure GLFW window hints - use OpenGL 4.1.
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		log.Fatalf("Failed to initialize OpenGL: %v", err)
	}

	uploader := render.NewGLUploader()
	group := batch.NewGroup(uploader)
	defer group.Clear()

	renderer := render.NewRenderer(uploader)
	defer renderer.Dispose()

	d := newDrawing(group, cfg.Drawing.Seed)
	cw, ch := window.GetFramebufferSize()
	if err := d.populate(cfg, float32(cw), float32(ch)); err != nil {
		log.Fatalf("Failed to build drawing: %v", err)
	}
	runtimeLogger.Printf("Drawing seeded with %d (%d entities)", cfg.Drawing.Seed, len(d.entities))

	newEventHandlers(window, d, renderer)

	bg := cfg.Background
	frameCount, frameTimeSum := 0, 0.0
	lastFPSUpdate := time.Now()

	// Main loop.
	for !window.ShouldClose() {
		frameStart := time.Now()

		w, h := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(float32(bg.R)/255, float32(bg.G)/255, float32(bg.B)/255, float32(bg.A)/255)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

		renderer.Draw(group)
		window.SwapBuffers()
		glfw.PollEvents()

		frameTime := time.Since(frameStart).Seconds() * 1000.0 // ms
		frameTimeSum += frameTime

		frameCount++
		now := time.Now()
		if now.Sub(lastFPSUpdate) >= time.Second {
			fps := float64(frameCount) / now.Sub(lastFPSUpdate).Seconds()
			avgFrameTime := frameTimeSum / float64(frameCount)
			frameCount, frameTimeSum = 0, 0.0
			lastFPSUpdate = now

			batchStats := group.Stats()
			renderStats := renderer.Stats()
			unbatched := 0
			for _, n := range batchStats.Unbatched {
				unbatched += n
			}

			window.SetTitle(makeTitle(cfg.Window.Title, fps, avgFrameTime, renderStats, batchStats))

			runtimeLogger.Println("=== Performance statistics ===")
			runtimeLogger.Printf("Frame rate:     %.1f FPS (%.2f ms/frame, %d draw calls/frame)", fps, avgFrameTime, renderStats.DrawCallsPerFrame)
			runtimeLogger.Printf("Drawing:        %d entities, %d active slots across %d containers (%d unbatched)", batchStats.Entities, batchStats.ActiveSlots, batchStats.Containers, unbatched)
			runtimeLogger.Printf("GPU memory:     %.2f MiB (+%.2f KiB slot bookkeeping)", float64(batchStats.GPUBytes)/(1024.0*1024.0), float64(batchStats.SlotBytes)/1024.0)
			runtimeLogger.Printf("Render time:    %.2f µs (last draw)", renderStats.LastDrawTimeUs)
			runtimeLogger.Printf("Housekeeping:   %d compactions (%d slots repacked), %d growth events, %d highlight skips", batchStats.Counters.CompactionEvents, batchStats.Counters.SlotsRepacked, batchStats.Counters.GrowthEvents, batchStats.Counters.HighlightSkips)
			runtimeLogger.Println("==============================")

			group.Stats().Print()
		}
	}
}

func seed() int64 {
	seedStr := os.Getenv("DRAFTVIEW_SEED")
	if seedStr == "" {
		return 0
	}
	s, err := strconv.ParseInt(seedStr, 10, 64)
	if err != nil {
		log.Fatalf("Invalid DRAFTVIEW_SEED value '%s': %v", seedStr, err)
	}
	return s
}
