//go:build linux

// Command aivd is the demo/diagnostic harness wiring session.Controller to a
// real V4L2 camera pair and a gRPC vision backend (spec §2.2). Linux-only:
// its only Capturer backend is go4vl's V4L2 device, itself linux-only.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/t-34400/quest-grpc/internal/camera"
	"github.com/t-34400/quest-grpc/internal/codec"
	"github.com/t-34400/quest-grpc/internal/config"
	"github.com/t-34400/quest-grpc/internal/frame"
	"github.com/t-34400/quest-grpc/internal/logging"
	"github.com/t-34400/quest-grpc/internal/session"
	"github.com/t-34400/quest-grpc/internal/visionpb"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "aivd",
	Short: "Stereo vision edge streaming daemon",
	Long:  `aivd captures stereo camera frames, encodes them to JPEG and streams them to a detection backend over gRPC.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the capture/encode/stream pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		runDaemon()
	},
}

var enumerateCmd = &cobra.Command{
	Use:   "enumerate",
	Short: "List cameras visible on this device",
	Run: func(cmd *cobra.Command, args []string) {
		enumerateCameras()
	},
}

var (
	paramsCameraID string
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print intrinsics/extrinsics for one camera",
	Run: func(cmd *cobra.Command, args []string) {
		printCameraParams(paramsCameraID)
	},
}

var (
	detectCameraID string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Capture a single frame and run the unary Detect fallback RPC",
	Run: func(cmd *cobra.Command, args []string) {
		runDetectOnce(detectCameraID)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/aivd/aivd.yaml)")
	paramsCmd.Flags().StringVar(&paramsCameraID, "camera", "", "camera id (as reported by enumerate)")
	detectCmd.Flags().StringVar(&detectCameraID, "camera", "", "camera id to capture a frame from")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(enumerateCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(detectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func initLogging(cfg *config.Config) {
	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	log = logging.L("main")
}

func newCapturerFactory() session.CapturerFactory {
	return func(cameraID string) (camera.Capturer, error) {
		return camera.NewV4L2Capturer(cameraID), nil
	}
}

// runDaemon wires a session.Controller against the real V4L2 backend and
// runs it until a shutdown signal arrives (spec §4.6 Init/StartStreamingStereo
// lifecycle, driven from the outside by this command-line harness).
func runDaemon() {
	cfg := loadConfig()
	initLogging(cfg)

	log.Info("starting aivd", "version", version, "target", cfg.GRPCTarget)

	ctrl := session.New()
	deps := session.Deps{
		Channel:     session.NewChannel(cfg.GRPCTarget),
		Source:      camera.NewV4L2Source(),
		NewCapturer: newCapturerFactory(),
	}

	ctx := context.Background()
	if err := ctrl.Init(ctx, deps); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	defer ctrl.Shutdown()

	if err := ctrl.SetJpegConfig(frame.JpegConfig{Quality: cfg.JPEGQuality}); err != nil {
		log.Warn("SetJpegConfig", logging.KeyError, err)
	}
	if err := ctrl.SetScoreThreshold(cfg.ScoreThreshold); err != nil {
		log.Warn("SetScoreThreshold", logging.KeyError, err)
	}
	if err := ctrl.SetImageIdPrefix(cfg.ImagePrefix); err != nil {
		log.Warn("SetImageIdPrefix", logging.KeyError, err)
	}
	if err := ctrl.SetStereoStreamBaseId(cfg.StreamBase); err != nil {
		log.Warn("SetStereoStreamBaseId", logging.KeyError, err)
	}
	if err := ctrl.SetStampMissingTimestamps(cfg.StampMissingTimestamps); err != nil {
		log.Warn("SetStampMissingTimestamps", logging.KeyError, err)
	}

	captureCfg := frame.CaptureConfig{Width: cfg.CaptureWidth, Height: cfg.CaptureHeight, FPS: cfg.CaptureFPS}
	if cfg.LeftCameraDevice != "" {
		if err := ctrl.SetCameraForRole(frame.RoleLeft, cfg.LeftCameraDevice, captureCfg); err != nil {
			fmt.Fprintf(os.Stderr, "SetCameraForRole(left): %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.RightCameraDevice != "" {
		if err := ctrl.SetCameraForRole(frame.RoleRight, cfg.RightCameraDevice, captureCfg); err != nil {
			fmt.Fprintf(os.Stderr, "SetCameraForRole(right): %v\n", err)
			os.Exit(1)
		}
	}

	if err := ctrl.SetCallbacks(session.Callbacks{
		OnFrameSent: func(imageID string, frameIndex uint64, timestampSec float64) {
			log.Debug("frame sent", "imageId", imageID, "frameIndex", frameIndex)
		},
		OnResult: func(res *session.Result) {
			log.Info("result", "imageId", res.ImageID, "frameIndex", res.FrameIndex, "detections", len(res.Detections))
		},
		OnError: func(code session.Status, message string) {
			log.Error("session error", "code", int(code), "message", message)
		},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "SetCallbacks: %v\n", err)
		os.Exit(1)
	}

	if err := ctrl.StartStreamingStereo(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start streaming: %v\n", err)
		os.Exit(1)
	}

	log.Info("aivd is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down aivd")
	if err := ctrl.StopStreaming(); err != nil {
		log.Warn("stop streaming", logging.KeyError, err)
	}
}

func enumerateCameras() {
	src := camera.NewV4L2Source()
	data, err := camera.EnumerateJSON(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "enumerate: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func printCameraParams(cameraID string) {
	if cameraID == "" {
		fmt.Fprintln(os.Stderr, "--camera is required")
		os.Exit(1)
	}

	capturer := camera.NewV4L2Capturer(cameraID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := capturer.Open(ctx, frame.CaptureConfig{}.WithDefaults()); err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", cameraID, err)
		os.Exit(1)
	}
	defer capturer.Close()

	intr, extr, rect, err := capturer.Params()
	if err != nil {
		fmt.Fprintf(os.Stderr, "params: %v\n", err)
		os.Exit(1)
	}

	out := map[string]any{
		"intrinsics": intr,
		"extrinsics": extr,
		"rect":       rect,
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

// runDetectOnce captures a single frame from cameraID, encodes it, and sends
// it through the unary Detect fallback RPC (spec §3.2 supplemented feature),
// printing the returned detections.
func runDetectOnce(cameraID string) {
	if cameraID == "" {
		fmt.Fprintln(os.Stderr, "--camera is required")
		os.Exit(1)
	}
	cfg := loadConfig()
	initLogging(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch := session.NewChannel(cfg.GRPCTarget)
	if err := ch.Dial(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	capturer := camera.NewV4L2Capturer(cameraID)
	if err := capturer.Open(ctx, frame.CaptureConfig{Width: cfg.CaptureWidth, Height: cfg.CaptureHeight, FPS: cfg.CaptureFPS}.WithDefaults()); err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", cameraID, err)
		os.Exit(1)
	}
	defer capturer.Close()

	y, u, v, w, h, ts, err := capturer.Capture(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capture: %v\n", err)
		os.Exit(1)
	}
	if ts == 0 && cfg.StampMissingTimestamps {
		ts = session.MonotonicNanos()
	}

	raw := &frame.RawFrame{Width: w, Height: h, TimestampNs: ts, Y: y, U: u, V: v}
	quality := frame.JpegConfig{Quality: cfg.JPEGQuality}.ClampQuality().Quality
	data, err := codec.NewEncoder().Encode(raw, quality)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}

	client, _ := ch.Client()

	resp, err := client.Detect(ctx, &visionpb.DetectRequest{
		CameraID: cameraID,
		Frame: &visionpb.Frame{
			CameraID:    cameraID,
			TimestampNs: ts,
			Width:       uint32(w),
			Height:      uint32(h),
			Format:      visionpb.ImageFormatJPEG,
			Data:        data,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "detect: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(resp.Result, "", "  ")
	fmt.Println(string(out))
}
