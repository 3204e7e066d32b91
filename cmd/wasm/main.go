//go:build js && wasm
// +build js,wasm

// Command wasm exposes feature extraction and classification to the
// browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/himanishpuri/CrySense/pkg/crysense"
	"github.com/himanishpuri/CrySense/pkg/crysense/model"
	"github.com/himanishpuri/CrySense/pkg/logger"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorAudio
	ErrorModel
)

var (
	service crysense.Service

	mu       sync.RWMutex
	artifact *model.Artifact
)

// readSamples validates (audioArray, sampleRate, channels) and returns a
// mono waveform.
func readSamples(args []js.Value) ([]float64, int, js.Value, bool) {
	if len(args) < 3 {
		return nil, 0, makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels"), false
	}

	audioDataJS := args[0]
	sampleRateJS := args[1]
	channelsJS := args[2]

	if audioDataJS.Type() != js.TypeObject {
		return nil, 0, makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float32Array"), false
	}
	if sampleRateJS.Type() != js.TypeNumber || channelsJS.Type() != js.TypeNumber {
		return nil, 0, makeErrorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers"), false
	}

	sampleRate := sampleRateJS.Int()
	channels := channelsJS.Int()
	if sampleRate <= 0 {
		return nil, 0, makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate)), false
	}
	if channels < 1 || channels > 2 {
		return nil, 0, makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels)), false
	}

	length := audioDataJS.Length()
	if length == 0 {
		return nil, 0, makeErrorResponse(ErrorInvalidArgs, "audioArray is empty"), false
	}

	samples := make([]float64, length)
	for i := 0; i < length; i++ {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return nil, 0, makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i)), false
		}
		samples[i] = val.Float()
	}

	if channels == 2 {
		samples = stereoToMono(samples)
	}
	return samples, sampleRate, js.Undefined(), true
}

// extractFeatures returns the named feature vector of a recording.
// Returns: {error: number, data: {names, values} | string}
func extractFeatures(this js.Value, args []js.Value) any {
	samples, sampleRate, errResp, ok := readSamples(args)
	if !ok {
		return errResp
	}

	vec, err := service.ExtractSamples(context.Background(), samples, sampleRate)
	if err != nil {
		return pipelineErrorResponse(err)
	}

	names := js.Global().Get("Array").New(len(vec.Names))
	values := js.Global().Get("Float64Array").New(len(vec.Values))
	for i := range vec.Names {
		names.SetIndex(i, vec.Names[i])
		values.SetIndex(i, vec.Values[i])
	}
	data := js.Global().Get("Object").New()
	data.Set("names", names)
	data.Set("values", values)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

// loadModel decodes an artifact from a Uint8Array. The optional second
// argument names the encoding ("msgpack", "json" or "yaml").
func loadModel(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "Expected a Uint8Array with the model bundle")
	}
	format := model.FormatMsgpack
	if len(args) > 1 && args[1].Type() == js.TypeString {
		format = model.Format(args[1].String())
	}

	data := make([]byte, args[0].Get("length").Int())
	js.CopyBytesToGo(data, args[0])

	a, err := model.Decode(data, format)
	if err != nil {
		return makeErrorResponse(ErrorModel, err.Error())
	}
	mu.Lock()
	artifact = a
	mu.Unlock()

	info := js.Global().Get("Object").New()
	info.Set("kind", a.Kind())
	info.Set("checksum", a.Checksum())
	info.Set("featureCount", a.NumFeatures())
	classes := js.Global().Get("Array").New(len(a.ClassNames()))
	for i, c := range a.ClassNames() {
		classes.SetIndex(i, c)
	}
	info.Set("classes", classes)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", info)
	return result
}

// classify runs the loaded model on a recording.
// Returns: {error: number, data: {class, confidence, probabilities} | string}
func classify(this js.Value, args []js.Value) any {
	mu.RLock()
	a := artifact
	mu.RUnlock()
	if a == nil {
		return makeErrorResponse(ErrorModel, "No model loaded; call crysenseLoadModel first")
	}

	samples, sampleRate, errResp, ok := readSamples(args)
	if !ok {
		return errResp
	}

	res, err := service.ClassifySamples(context.Background(), samples, sampleRate, a)
	if err != nil {
		return pipelineErrorResponse(err)
	}

	probs := js.Global().Get("Object").New()
	for class, p := range res.Probabilities {
		probs.Set(class, p)
	}
	data := js.Global().Get("Object").New()
	data.Set("class", res.Class)
	data.Set("confidence", res.Confidence)
	data.Set("probabilities", probs)
	data.Set("reconciliation", string(res.Reconciliation.Action))

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func stereoToMono(stereo []float64) []float64 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}

	mono := make([]float64, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2.0
	}
	return mono
}

func pipelineErrorResponse(err error) js.Value {
	var pe *crysense.PredictionError
	if errors.As(err, &pe) {
		code := ErrorAudio
		if pe.Kind() == crysense.KindModel {
			code = ErrorModel
		}
		return makeErrorResponse(code, pe.Message())
	}
	return makeErrorResponse(ErrorAudio, err.Error())
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}
	logf("log", "🔧 CrySense WASM module initializing...")

	var err error
	service, err = crysense.NewService(crysense.WithLogger(logger.Discard()), crysense.WithConcurrency(1))
	if err != nil {
		logf("error", "❌ failed to start CrySense: "+err.Error())
		return
	}

	js.Global().Set("crysenseExtractFeatures", js.FuncOf(extractFeatures))
	js.Global().Set("crysenseLoadModel", js.FuncOf(loadModel))
	js.Global().Set("crysenseClassify", js.FuncOf(classify))
	logf("log", "📝 crysenseExtractFeatures, crysenseLoadModel and crysenseClassify registered")

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
		logf("log", "✅ wasmReady event dispatched")
	} else {
		logf("error", "❌ window object is undefined!")
	}

	select {}
}
