// Package device defines the printer telemetry protocols the bridge speaks.
//
// A Protocol knows where to connect, which topics to use and how to turn a
// raw report payload into a partial printer.Update. Bambu printers are
// reachable two ways: through the vendor cloud broker with an account token,
// or directly on the LAN with the printer's access code. Both variants share
// one report format, which carries either a free-text gcode_state or a
// numeric st_id code.
package device
