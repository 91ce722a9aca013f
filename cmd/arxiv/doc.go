/*
arxiv searches arXiv, downloads papers, converts them to markdown and
serves them to MCP clients.

# Usage

	arxiv <command> [flags]

# Commands

	serve      Run the MCP server (stdio or streamable HTTP)
	download   Download and convert papers
	status     Show whether a paper is stored or converting
	read       Print a stored paper's markdown
	ls         List stored papers (alias: list)
	search     Search arXiv, or the local index with --local
	version    Print version info

# Configuration

Every persistent flag has an ARXIV_* environment counterpart, and a .env
file in the working directory is loaded first:

	ARXIV_STORAGE_PATH     Directory of converted papers (default: ~/.cache/arxiv-mcp/papers)
	ARXIV_INDEX_PATH       Metadata database (default: <storage>/index.db)
	ARXIV_MAX_RESULTS      Upper bound on search results (default: 50)
	ARXIV_REQUEST_TIMEOUT  Timeout for arXiv requests (default: 60s)
	ARXIV_WORKERS          Concurrent conversions (default: 2)
	ARXIV_QUEUE_SIZE       Pending conversions (default: 64)
	ARXIV_KEEP_PDF         Keep downloaded PDFs (default: false)
	ARXIV_PDFTOTEXT        pdftotext binary (default: pdftotext)
	ARXIV_JOB_TTL          Forget finished jobs after this long (default: never)
	ARXIV_LOG_LEVEL        debug, info, warn or error (default: info)
	ARXIV_LOG_FORMAT       json or console (default: json)
	ARXIV_TRANSPORT        stdio or http, for serve (default: stdio)
	ARXIV_ADDR             Listen address for http (default: :8080)

Logs always go to stderr.

# MCP Tools

	search_papers    query, max_results, date_from, date_to, categories, sort_by
	download_paper   paper_id, check_status
	list_papers
	read_paper       paper_id

Downloads return as soon as the PDF is fetched; conversion continues in
the background. Poll with download_paper check_status=true until the
status is succeeded or failed. Converted papers are also readable as the
resource arxiv://<paper_id>.

# Examples

	arxiv serve                                 # stdio, for desktop MCP clients
	arxiv serve --transport http --addr :9000   # streamable HTTP
	arxiv download --wait 1706.03762            # convert and wait
	arxiv read 1706.03762 | less
	arxiv search -c cs.CL --sort date "retrieval augmented generation"
*/
package main
