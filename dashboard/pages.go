package dashboard

// Static operator pages. The login page posts the auth key to /api/login
// and the dashboard polls /api/stats, which also keeps the login alive.

const loginPage = `<!DOCTYPE html>
<html>
<head>
<title>Gateway Login</title>
<style>
body { font-family: sans-serif; background: #1b1e24; color: #e6e6e6;
       display: flex; justify-content: center; align-items: center; height: 100vh; }
form { background: #262a33; padding: 2em; border-radius: 8px; }
input { display: block; margin: 0.5em 0; padding: 0.5em; width: 16em; }
button { padding: 0.5em 1.5em; }
#err { color: #e05555; min-height: 1.2em; }
</style>
</head>
<body>
<form id="login">
<h2>Gateway</h2>
<input type="password" id="key" placeholder="Auth key" autofocus>
<p id="err"></p>
<button type="submit">Sign in</button>
</form>
<script>
document.getElementById("login").addEventListener("submit", async function (e) {
	e.preventDefault();
	const resp = await fetch("/api/login", {
		method: "POST",
		headers: {"Content-Type": "application/json"},
		body: JSON.stringify({authKey: document.getElementById("key").value}),
	});
	if (resp.ok) {
		window.location = "/dashboard";
	} else {
		document.getElementById("err").textContent = "Invalid authentication key";
	}
});
</script>
</body>
</html>
`

const dashboardPage = `<!DOCTYPE html>
<html>
<head>
<title>Gateway Dashboard</title>
<style>
body { font-family: sans-serif; background: #1b1e24; color: #e6e6e6; margin: 2em; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #3a3f4a; padding: 0.4em 0.8em; text-align: left; }
th { background: #262a33; }
.dead { color: #e05555; }
.healthy { color: #5fd068; }
#totals { margin-top: 0.5em; }
</style>
</head>
<body>
<h2>Game Server Fleet</h2>
<p id="totals">loading…</p>
<table>
<thead><tr><th>ID</th><th>Host</th><th>Status</th><th>Connections</th>
<th>CPU</th><th>RAM</th><th>Latency</th><th>Last heartbeat</th></tr></thead>
<tbody id="servers"></tbody>
</table>
<h3>Recent migrations</h3>
<tbody id="migrations"></tbody>
<p><a href="#" id="logout">Log out</a></p>
<script>
async function refresh() {
	const resp = await fetch("/api/stats");
	if (resp.status === 401) { window.location = "/"; return; }
	const stats = await resp.json();
	document.getElementById("totals").textContent =
		stats.totalServers + " servers (" + stats.healthyServers + " healthy), " +
		stats.totalActiveSessions + " sessions, " +
		stats.totalMigrations + " migrations";
	document.getElementById("servers").innerHTML = stats.servers.map(s =>
		"<tr><td>" + s.id + "</td><td>" + s.host + ":" + s.port + "</td>" +
		"<td class='" + s.status + "'>" + s.status + "</td>" +
		"<td>" + s.activeConnections + "/" + s.maxConnections + "</td>" +
		"<td>" + s.cpuUsage.toFixed(1) + "%</td>" +
		"<td>" + (s.ramUsage / 1048576).toFixed(0) + " MiB</td>" +
		"<td>" + s.latency + " ms</td>" +
		"<td>" + s.lastHeartbeat + "</td></tr>").join("");
	document.getElementById("migrations").innerHTML = stats.recentMigrations.map(m =>
		"<tr><td>" + m.timestamp + "</td><td>" + m.fromServer + " → " + m.toServer +
		"</td><td>" + m.clientCount + " clients</td></tr>").join("");
}
document.getElementById("logout").addEventListener("click", async function (e) {
	e.preventDefault();
	await fetch("/api/logout", {method: "POST"});
	window.location = "/";
});
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>
`
