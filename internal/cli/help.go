package cli

import "fmt"

func PrintExtendedHelp() {
	fmt.Println(`notakopi - Receipt (nota) scanner for coffee shop inventory

Usage:
  notakopi [flags] [command]

Commands:
  serve            Start the HTTP API, inbox watcher and scheduled jobs (default)
  parse [file]     Parse OCR text from a file or stdin
  scan <image>     Run OCR on an image and parse it
  batch            Process many notas from a JSONL file, path list or directory
  inventory        Inspect stock and saved notas
  config           Show configuration
  status           Show what is enabled
  doctor           Diagnose configuration problems
  version          Show version
  help             Show this help

Flags:
  -config string   Path to config file
  -data string     Data directory
  -help            Show help

Examples:
  notakopi                                    # Start the server
  notakopi parse nota.txt --format table
  cat nota.txt | notakopi parse -
  notakopi scan nota.jpg --save
  notakopi batch -i ./scans -o report.yaml
  notakopi inventory low --threshold 3

Environment:
  NOTAKOPI_OCR_PROVIDER          ocrspace, tesseract or mock
  OCR_SPACE_API_KEY              OCR.space API key
  NOTAKOPI_SECURITY_ADMIN_PASSWORD  Enables login on the API
  NOTAKOPI_SERVER_PORT           HTTP port (PORT also works)`)
}

func PrintBatchHelp() {
	fmt.Println(`Batch Processing

Usage:
  notakopi batch -i <input> [options]

Options:
  -i, --input        JSONL file, path list or directory (required)
  -o, --output       Report file, .json or .yaml
  --format           Report format on stdout when -o is not given (json, yaml)
  -c, --concurrency  Concurrent workers (default from config)
  -t, --timeout      Per-item timeout in seconds (default from config)
  --rpm              OCR requests per minute (default from config)

Input formats:
  JSONL, one object per line:
    {"id": "nota-1", "path": "scans/nota-1.jpg"}
    {"id": "nota-2", "text": "Gula Pasir 5 kg 75.000"}

  Path list, one file per line (.txt or .list)

  Directory, every image, PDF and .txt file in it

Examples:
  notakopi batch -i notas.jsonl -o report.json
  notakopi batch -i ./scans -c 2 --rpm 20 --format yaml`)
}

func PrintConfigHelp() {
	fmt.Println(`Configuration

Usage:
  notakopi config get <key>   Print one setting
  notakopi config path        Print the config file path
  notakopi config show        Print the config file

Keys:
  server.port, server.address, storage.data_dir,
  ocr.provider, ocr.api_key, ocr.language, upload.max_bytes,
  inbox.enabled, inbox.dir, inbox.auto_save

Every setting can also be set with a NOTAKOPI_ environment variable,
for example NOTAKOPI_OCR_PROVIDER=tesseract.`)
}

func PrintInventoryHelp() {
	fmt.Println(`Inventory

Usage:
  notakopi inventory list [--kategori K] [--search S] [--limit N]
  notakopi inventory low [--threshold N]
  notakopi inventory notas [--limit N]
  notakopi inventory export -o <file.xlsx> [--kategori K]

Options:
  --format   table, json or yaml (table on a terminal, json otherwise)`)
}
