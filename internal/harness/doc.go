// Package harness runs board conformance scenarios.
//
// A scenario names a board description and generation options, runs the
// full generate pipeline into a scratch directory and checks the result.
//
// # Scenario Format
//
// Scenarios are YAML files. Generation keys are the batch manifest job keys
// (input, templates, layout, af_json, vendor_db, owners, core, ...); paths
// are relative to the scenario file.
//
//	name: h747_console
//	description: "Console UART resolves to AF7"
//	input: ../boards/disco.ioc
//	af_json: ../af/h747.json
//	templates: [hal]
//	assertions:
//	  - type: pin_af
//	    pin: PA9
//	    signal: USART1_TX
//	    af: 7
//	  - type: peripheral
//	    name: usart1
//	    class: serial
//	  - type: file_contains
//	    file: hal.rs
//	    contains: "pub fn init"
//
// A scenario that expects generation to fail sets expect_error to an error
// code (RESERVED_PIN, UNKNOWN_MCU, ...) and usually has no assertions.
//
// # Assertion Types
//
//   - pin_af: the pin carrying signal resolved to af
//   - pin_label: the pin carries label
//   - peripheral: the peripheral exists, with class, core and signals when given
//   - init_by: the clock tree is initialized by core ("" for none)
//   - file_contains: a generated file (relative to the output dir) contains text
//   - file_count: the number of generated files, board module excluded
//
// # Golden Snapshots
//
// Snapshot renders the generated IR and file list as canonical JSON, so a
// scenario can be pinned with a golden file under golden/<name>.golden.
package harness
