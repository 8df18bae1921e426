// Package examples contains simulated devices built entirely on the
// public driver API.
//
// The examples show:
//   - property construction for every kind (Text, Number, Switch, Light, BLOB)
//   - change-request handlers and the Busy/Ok/Alert update discipline
//   - long-running operations run off the serve goroutine
//
// Available devices:
//   - Camera: a CCD with exposure countdown, image download and a cooler
//   - WeatherStation: ambient readings with alert lights
//   - PowerBox: a switchable outlet bank
//
// indigo-simulator hosts all three as one driver; they can serve as
// templates for real device implementations.
package examples
